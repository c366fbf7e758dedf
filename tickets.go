package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/gata-works/dataset-prep/internal/dataset"
)

// TicketSource extracts labeled tickets closed inside a window. Tickets
// without a label are left out; a labeled ticket without text aborts the
// fetch.
type TicketSource interface {
	FetchTickets(ctx context.Context, window Window) ([]dataset.Record, error)
}

// SourceOptions are the query settings shared by every ticket source.
type SourceOptions struct {
	GroupIDs []int64
	PageSize int
	Retry    RetryPolicy
}

func (o SourceOptions) pageSize() int {
	if o.PageSize <= 0 {
		return 50
	}
	return o.PageSize
}

// ticketSQL renders the extraction query. ph renders the placeholder of the
// i-th parameter (1-based) called name. Parameters are, in order: start,
// end, one per group ID, limit and offset.
func ticketSQL(groupCount int, ph func(i int, name string) string) string {
	i := 0
	next := func(name string) string {
		i++
		return ph(i, name)
	}

	query := []string{
		"SELECT id, processed_data AS text, closed_group_id_mapped AS label",
		"FROM ticket",
		"WHERE (via_channel != 'api' OR (via_channel = 'api' AND initial_group_id = 0)) AND routed_by != 'gata-mapped'",
		fmt.Sprintf("AND closed BETWEEN %s AND %s", next("start"), next("end")),
	}

	if groupCount > 0 {
		tokens := make([]string, groupCount)
		for g := range tokens {
			tokens[g] = next(fmt.Sprintf("group_id_%d", g))
		}
		query = append(query, fmt.Sprintf("AND closed_group_id_mapped IN (%s)", strings.Join(tokens, ", ")))
	}

	query = append(query,
		"ORDER BY closed DESC, id DESC",
		fmt.Sprintf("LIMIT %s OFFSET %s", next("limit"), next("offset")),
	)
	return strings.Join(query, " ")
}

// ticketRow is one row of the extraction query before validation.
type ticketRow struct {
	ID    int64   `json:"id"`
	Text  *string `json:"text"`
	Label *int64  `json:"label"`
}

// toRecord converts a row. ok is false for unlabeled tickets.
func (r ticketRow) toRecord() (record dataset.Record, ok bool, err error) {
	if r.Label == nil {
		return dataset.Record{}, false, nil
	}
	if r.Text == nil {
		return dataset.Record{}, false, fmt.Errorf("ticket %d: labeled ticket has no text", r.ID)
	}
	return dataset.Record{
		Text:  *r.Text,
		Label: dataset.LabelID(strconv.FormatInt(*r.Label, 10)),
	}, true, nil
}
