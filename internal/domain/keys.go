package domain

// KeyPrefix namespaces every key simdex writes to the key-value store.
const KeyPrefix = "simdex:"
