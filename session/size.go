package session

// Size thresholds for choosing the upload path
const (
	LargeFileThreshold     = 50 * 1024 * 1024
	VeryLargeFileThreshold = 100 * 1024 * 1024
)

// SizeClass buckets a file by byte size
type SizeClass int

const (
	Small SizeClass = iota
	Large
	VeryLarge
)

func (c SizeClass) String() string {
	switch c {
	case Large:
		return "large"
	case VeryLarge:
		return "very large"
	default:
		return "small"
	}
}

// IsLarge reports whether the file takes the background path.
// VeryLarge is a refinement of Large.
func (c SizeClass) IsLarge() bool {
	return c == Large || c == VeryLarge
}

// Classify returns the size class for a byte count
func Classify(size int64) SizeClass {
	switch {
	case size > VeryLargeFileThreshold:
		return VeryLarge
	case size > LargeFileThreshold:
		return Large
	default:
		return Small
	}
}
