// Package logsink carries tetherproxy's leveled log events.
//
// Every component reports through a Sink. Sinks never feed anything back into
// the proxy: events are appended and forgotten. Zap writes them to the
// console, Ring keeps a short history for the debug listener and Multi fans
// one event out to several sinks.
package logsink
