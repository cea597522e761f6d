//go:build sqlite

package storage

func DefaultStoreKind() string { return "sqlite" }

func newSQLiteStore(path string) (Store, error) {
	if path == "" {
		path = "graphgolf.db"
	}
	return NewSQLiteStore(path), nil
}
