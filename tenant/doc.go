// Package tenant binds inbound requests to a tenant identity.
//
// A tenant is identified by a public subdomain and mapped, through the
// shared catalog, to the PostgreSQL schema (partition) holding its
// data. The Resolver extracts a candidate subdomain from the request
// (explicit header, query parameter, path prefix, or host name, in
// strict precedence order), normalizes it, and looks it up in the
// catalog. The resulting Binding travels in the request context for
// the rest of the request's lifecycle and is the only way downstream
// code learns which partition to operate on.
package tenant
