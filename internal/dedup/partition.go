package dedup

import "docrag/internal/domain"

// Result is the outcome of Partition. Fingerprints holds one entry per New
// chunk, in the same order.
type Result struct {
	New          []domain.Chunk
	Duplicates   []domain.Chunk
	Fingerprints []domain.Fingerprint
}

// Partition splits chunks into those whose fingerprint is not in existing
// and duplicates. A fingerprint seen earlier in the same batch also counts as
// a duplicate, so a batch never yields the same text twice. existing is not
// modified.
func Partition(existing Set, chunks []domain.Chunk) Result {
	seen := existing.Clone()
	var res Result
	for _, c := range chunks {
		fp := Fingerprint(c.Text)
		if seen.Has(fp) {
			res.Duplicates = append(res.Duplicates, c)
			continue
		}
		seen[fp] = struct{}{}
		res.New = append(res.New, c)
		res.Fingerprints = append(res.Fingerprints, fp)
	}
	return res
}
