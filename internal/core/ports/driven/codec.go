package driven

// CompactionCodec compresses history entries that have aged out of the
// retention window. It is optional; without one, entries stay raw.
type CompactionCodec interface {
	// Name identifies the codec; it is recorded on compressed entries.
	Name() string

	// Compress returns the compressed form of src.
	Compress(src []byte) ([]byte, error)

	// Decompress reverses Compress.
	Decompress(src []byte) ([]byte, error)
}
