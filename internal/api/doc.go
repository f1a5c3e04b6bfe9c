// Package api handles incoming HTTP requests for the recording service:
// room and recording creation, the remote service's completion webhooks,
// task queue inspection and maintenance triggers. Handlers translate HTTP
// concerns into queue and registry operations and never call the remote
// service synchronously except to create or look up rooms.
package api
