// Package testutil contains helper builders and fakes used across tests to
// reduce boilerplate when constructing tasks, organizations and scripted
// reasoning. They are not intended for production usage.
package testutil
