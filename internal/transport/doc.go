// Package transport forwards locally modified entities to the remote
// authority.
//
// Sender is the fire-and-forget contract the entity repositories call after
// a local write. PushQueue implements it on top of a Pusher, sending the
// snapshots of one entity strictly in the order they were enqueued and
// logging failures instead of returning them. GRPCClient is the Pusher used
// in production; it calls the SyncService/Push method with a
// google.protobuf.Struct payload and attaches the access token to every
// call.
package transport
