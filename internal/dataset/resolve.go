package dataset

import "fmt"

// Mode selects which dataset a resolution is for.
type Mode int

const (
	// GeneralDataset keeps every record and collapses low-volume labels into
	// the fallback label.
	GeneralDataset Mode = iota
	// LowVolumeDataset keeps only records of exportable low-volume labels.
	LowVolumeDataset
)

func (m Mode) String() string {
	switch m {
	case GeneralDataset:
		return "general"
	case LowVolumeDataset:
		return "low-volume"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ActionKind is what happens to the records of one label.
type ActionKind int

const (
	// Keep leaves the records and their label unchanged.
	Keep ActionKind = iota
	// Reassign keeps the records under another label.
	Reassign
	// Drop removes the records.
	Drop
)

// Action is the resolution of a label. Label is the label records end up
// with and is empty for Drop.
type Action struct {
	Kind  ActionKind
	Label LabelID
}

func (a Action) String() string {
	switch a.Kind {
	case Keep:
		return "keep(" + string(a.Label) + ")"
	case Reassign:
		return "reassign(" + string(a.Label) + ")"
	default:
		return "drop"
	}
}

// Plan computes the action for every classified label.
func Plan(c Classification, fallback LabelID, mode Mode) map[LabelID]Action {
	plan := make(map[LabelID]Action, len(c.Labels))
	for label, class := range c.Labels {
		plan[label] = actionFor(class, fallback, mode)
	}
	return plan
}

func actionFor(class LabelClass, fallback LabelID, mode Mode) Action {
	switch mode {
	case LowVolumeDataset:
		if class.Exportable() {
			return Action{Kind: Keep, Label: class.Label}
		}
		return Action{Kind: Drop}
	default:
		if class.LowVolume {
			return Action{Kind: Reassign, Label: fallback}
		}
		return Action{Kind: Keep, Label: class.Label}
	}
}

// Resolve applies the plan for c to records and returns a new slice.
// Labels that c has never seen are kept in GeneralDataset mode and dropped
// in LowVolumeDataset mode.
func Resolve(records []Record, c Classification, fallback LabelID, mode Mode) []Record {
	plan := Plan(c, fallback, mode)
	out := make([]Record, 0, len(records))
	for _, record := range records {
		action, ok := plan[record.Label]
		if !ok {
			action = actionFor(LabelClass{Label: record.Label}, fallback, mode)
		}
		switch action.Kind {
		case Keep:
			out = append(out, record)
		case Reassign:
			out = append(out, Record{Text: record.Text, Label: action.Label})
		}
	}
	return out
}

// Filter returns the records whose label satisfies keep.
func Filter(records []Record, keep func(LabelID) bool) []Record {
	out := make([]Record, 0, len(records))
	for _, record := range records {
		if keep(record.Label) {
			out = append(out, record)
		}
	}
	return out
}
