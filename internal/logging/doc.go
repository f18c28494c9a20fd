// Package logging builds the logrus loggers used by the client, the reference
// service, and the command-line tools.
//
// Components log through an entry carrying a "component" field so output from
// the interceptor, the refresh coordinator, and the service can be told apart.
package logging
