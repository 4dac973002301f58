package ports

// Hasher defines the interface for computing content hashes.
//
//go:generate mockgen -source=hasher.go -destination=mocks/mock_hasher.go -package=mocks
type Hasher interface {
	// HashTree computes a hash over the names and contents of every regular
	// file below root. An empty or missing root hashes to the empty string.
	HashTree(root string) (string, error)
}
