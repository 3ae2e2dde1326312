package alphabet

// complementTable maps every byte to its IUPAC nucleotide complement.
// Bytes without a complement map to themselves, which keeps Complement an involution.
var complementTable [256]byte

func init() {
	for i := range complementTable {
		complementTable[i] = byte(i)
	}
	pairs := []string{"AT", "CG", "RY", "KM", "BV", "DH"}
	for _, p := range pairs {
		a, b := p[0], p[1]
		complementTable[a], complementTable[b] = b, a
		la, lb := a+('a'-'A'), b+('a'-'A')
		complementTable[la], complementTable[lb] = lb, la
	}
	// S, W, N and the gap are their own complements.
}

// Complement returns the IUPAC complement of a nucleotide symbol, preserving case.
func Complement(b byte) byte {
	return complementTable[b]
}

// ComplementInPlace replaces every symbol of data with its complement.
func ComplementInPlace(data []byte) {
	for i, b := range data {
		data[i] = complementTable[b]
	}
}
