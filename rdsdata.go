package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rdsdata"
	"github.com/aws/aws-sdk-go-v2/service/rdsdata/types"

	"github.com/gata-works/dataset-prep/internal/dataset"
)

type rdsDataAPI interface {
	ExecuteStatement(ctx context.Context, params *rdsdata.ExecuteStatementInput, optFns ...func(*rdsdata.Options)) (*rdsdata.ExecuteStatementOutput, error)
}

// RDSDataTicketSource reads tickets from an Aurora cluster through the RDS
// Data API. Auto-paused clusters answer with DatabaseResumingException until
// they are back, which the retry policy absorbs while priming.
type RDSDataTicketSource struct {
	client     rdsDataAPI
	clusterARN string
	secretARN  string
	database   string
	opts       SourceOptions
}

// NewRDSDataTicketSource builds the source and primes the connection with
// SELECT 1.
func NewRDSDataTicketSource(ctx context.Context, client rdsDataAPI, clusterARN, secretARN, database string, opts SourceOptions) (*RDSDataTicketSource, error) {
	src := &RDSDataTicketSource{
		client:     client,
		clusterARN: clusterARN,
		secretARN:  secretARN,
		database:   database,
		opts:       opts,
	}
	err := opts.Retry.Do(ctx, driverRDSData, isRDSResuming, func(ctx context.Context) error {
		_, err := src.execute(ctx, "SELECT 1", nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return src, nil
}

func isRDSResuming(err error) bool {
	var resuming *types.DatabaseResumingException
	return errors.As(err, &resuming)
}

func (s *RDSDataTicketSource) execute(ctx context.Context, sql string, params []types.SqlParameter) (*rdsdata.ExecuteStatementOutput, error) {
	return s.client.ExecuteStatement(ctx, &rdsdata.ExecuteStatementInput{
		ResourceArn: aws.String(s.clusterARN),
		SecretArn:   aws.String(s.secretARN),
		Database:    aws.String(s.database),
		Sql:         aws.String(sql),
		Parameters:  params,
		ResultSetOptions: &types.ResultSetOptions{
			DecimalReturnType: types.DecimalReturnTypeDoubleOrLong,
			LongReturnType:    types.LongReturnTypeLong,
		},
		FormatRecordsAs: types.RecordsFormatTypeJson,
	})
}

// Select runs a read-only query and decodes the JSON formatted records.
func (s *RDSDataTicketSource) Select(ctx context.Context, sql string, params []types.SqlParameter, out any) error {
	if !strings.HasPrefix(strings.TrimSpace(sql), "SELECT") {
		return errors.New("query must start with SELECT")
	}
	resp, err := s.execute(ctx, sql, params)
	if err != nil {
		return fmt.Errorf("execute statement: %w", err)
	}
	if resp.FormattedRecords == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(*resp.FormattedRecords), out); err != nil {
		return fmt.Errorf("decode formatted records: %w", err)
	}
	return nil
}

// FetchTickets pages through the tickets closed inside window.
func (s *RDSDataTicketSource) FetchTickets(ctx context.Context, window Window) ([]dataset.Record, error) {
	query := ticketSQL(len(s.opts.GroupIDs), func(_ int, name string) string { return ":" + name })
	debugf("Query: %s", query)

	limit := s.opts.pageSize()
	params := []types.SqlParameter{
		longParam("start", window.Start.Unix()),
		longParam("end", window.End.Unix()),
	}
	for i, id := range s.opts.GroupIDs {
		params = append(params, longParam(fmt.Sprintf("group_id_%d", i), id))
	}

	var records []dataset.Record
	unlabeled := 0
	for offset := 0; ; offset += limit {
		pageParams := append(append([]types.SqlParameter{}, params...),
			longParam("limit", int64(limit)),
			longParam("offset", int64(offset)),
		)

		var rows []ticketRow
		if err := s.Select(ctx, query, pageParams, &rows); err != nil {
			return nil, fmt.Errorf("failed to query tickets: %w", err)
		}
		if len(rows) == 0 {
			break
		}
		for _, row := range rows {
			record, ok, err := row.toRecord()
			if err != nil {
				return nil, err
			}
			if !ok {
				unlabeled++
				continue
			}
			records = append(records, record)
		}
	}

	log.Printf("Fetched %d labeled tickets for %s (%d unlabeled skipped)", len(records), window, unlabeled)
	return records, nil
}

func longParam(name string, value int64) types.SqlParameter {
	return types.SqlParameter{
		Name:  aws.String(name),
		Value: &types.FieldMemberLongValue{Value: value},
	}
}
