package dataset

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// DefaultTrainFraction is the share of each label that goes to training.
const DefaultTrainFraction = 0.9

// Split partitions records into train and test sets label by label.
//
// Each label keeps floor(trainFraction*n) records for training. A label with
// two or more records always leaves at least one in each partition; a label
// with a single record goes to training. Within a label records are ordered
// by a hash of their text, so the partition is deterministic and does not
// depend on the input order. Each partition is returned in hash order with
// labels mixed.
func Split(records []Record, trainFraction float64) (train []Record, test []Record, err error) {
	if len(records) == 0 {
		return nil, nil, ErrEmptyInput
	}
	if math.IsNaN(trainFraction) || trainFraction <= 0 || trainFraction >= 1 {
		return nil, nil, fmt.Errorf("train fraction %v outside (0, 1)", trainFraction)
	}
	fraction, err := decimalFromFloat(trainFraction)
	if err != nil {
		return nil, nil, err
	}

	groups := make(map[LabelID][]hashedRecord)
	for _, record := range records {
		groups[record.Label] = append(groups[record.Label], hashedRecord{
			Record: record,
			key:    sha256.Sum256([]byte(record.Text)),
		})
	}
	labels := make([]LabelID, 0, len(groups))
	for label := range groups {
		labels = append(labels, label)
	}
	SortLabels(labels)

	var trainSet, testSet []hashedRecord
	for _, label := range labels {
		group := groups[label]
		slices.SortFunc(group, compareHashed)

		n, err := trainCount(fraction, len(group))
		if err != nil {
			return nil, nil, fmt.Errorf("split label %s: %w", label, err)
		}
		trainSet = append(trainSet, group[:n]...)
		testSet = append(testSet, group[n:]...)
	}
	return interleave(trainSet), interleave(testSet), nil
}

// interleave orders a partition by record hash so labels are mixed through
// the output instead of written one group after another.
func interleave(set []hashedRecord) []Record {
	slices.SortFunc(set, compareHashed)
	out := make([]Record, len(set))
	for i, member := range set {
		out[i] = member.Record
	}
	return out
}

type hashedRecord struct {
	Record
	key [sha256.Size]byte
}

func compareHashed(a, b hashedRecord) int {
	if c := bytes.Compare(a.key[:], b.key[:]); c != 0 {
		return c
	}
	if c := strings.Compare(a.Text, b.Text); c != 0 {
		return c
	}
	return compareLabels(a.Label, b.Label)
}

func trainCount(fraction *apd.Decimal, size int) (int, error) {
	if size < 2 {
		return size, nil
	}
	n, err := floorShare(fraction, size)
	if err != nil {
		return 0, err
	}
	return min(max(n, 1), size-1), nil
}
