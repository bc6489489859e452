package tidings

// Database is a store that has to be opened before use.
type Database interface {
	Open() error
	Close() error
}
