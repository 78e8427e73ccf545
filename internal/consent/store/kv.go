package store

//go:generate mockgen -source=kv.go -destination=mocks/mocks.go -package=mocks KV

// KV is the capability interface for a string key-value facility. The consent
// logic never touches a concrete storage mechanism directly; it is handed KV
// implementations so tests can substitute in-memory fakes.
//
// Error Contract:
// - Get returns "" (never an error) when the key is absent
// - Errors signal the facility itself failed; the Store absorbs them
type KV interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}
