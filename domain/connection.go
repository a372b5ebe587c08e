package domain

// ConnectionID identifies one live client connection. It is plain data,
// valid only for the duration of the network session, and never persisted.
type ConnectionID string
