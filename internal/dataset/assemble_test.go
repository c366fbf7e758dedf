package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssemble(t *testing.T) {
	records := concat(makeRecords("1", 20), makeRecords("2", 10))

	spec, err := Assemble("gata-general", records, 0.9)
	require.NoError(t, err)
	assert.Equal(t, "gata-general", spec.Name)
	assert.Equal(t, 0.9, spec.TrainFraction)

	records[0].Label = "changed"
	assert.Equal(t, LabelID("1"), spec.Records[0].Label, "assembled dataset must own its records")

	parts, err := spec.Split()
	require.NoError(t, err)
	assert.Equal(t, "gata-general", parts.Name)
	assert.Equal(t, 30, parts.Len())
	assert.Len(t, parts.Train, 27)
	assert.Len(t, parts.Test, 3)
}

func TestAssemble_DefaultFraction(t *testing.T) {
	spec, err := Assemble("d", makeRecords("1", 3), 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultTrainFraction, spec.TrainFraction)
}

func TestAssemble_Rejects(t *testing.T) {
	_, err := Assemble("", makeRecords("1", 3), 0.9)
	assert.Error(t, err)

	_, err = Assemble("empty", nil, 0.9)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = Assemble("unlabeled", []Record{{Text: "no label"}}, 0.9)
	assert.ErrorContains(t, err, "has no label")
}

func TestGeneralFallback(t *testing.T) {
	viable, err := Classify(Count(concat(makeRecords("A", 15), makeRecords("B", 12), makeRecords("C", 973))), 0.033)
	require.NoError(t, err)
	assert.Equal(t, LabelID("0"), GeneralFallback(viable, "99", "0"))
	assert.Equal(t, LabelID("99"), GeneralFallback(viable, "99", ""))

	notViable, err := Classify(Count(concat(makeRecords("X", 97), makeRecords("Y", 3))), 0.033)
	require.NoError(t, err)
	assert.Equal(t, LabelID("99"), GeneralFallback(notViable, "99", "0"))
}
