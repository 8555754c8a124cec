// Package ticket defines the support-ticket entity and its persistence
// contract. Tickets are created by upstream intake, handed to agents by
// the dispatcher, and closed by agents. Every operation is scoped to
// one tenant's partition through the binding it receives.
package ticket
