package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/glue/types"
	"go.uber.org/zap"
)

// ContextProvider resolves column metadata for a fully qualified table.
type ContextProvider interface {
	TableSchema(ctx context.Context, table string) ([]Column, error)
}

// Table is a catalog snapshot of one table: its storage format and columns.
type Table struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Columns []Column `json:"columns"`
}

// GlueAPI is the slice of the Glue client the provider depends on.
type GlueAPI interface {
	GetTable(ctx context.Context, params *glue.GetTableInput, optFns ...func(*glue.Options)) (*glue.GetTableOutput, error)
}

// GlueProvider reads table schemas from the Glue Data Catalog.
type GlueProvider struct {
	client GlueAPI
	logger *zap.Logger
}

var _ ContextProvider = (*GlueProvider)(nil)

func NewGlueProvider(client GlueAPI, logger *zap.Logger) *GlueProvider {
	return &GlueProvider{client: client, logger: logger.Named("glue")}
}

// TableSchema returns the table's columns in catalog order, with partition
// keys appended and marked in the comment. A table name without a database
// prefix is looked up in the default database.
func (p *GlueProvider) TableSchema(ctx context.Context, table string) ([]Column, error) {
	_, columns, err := p.getTable(ctx, table)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("resolved table schema",
		zap.String("table", table),
		zap.Int("columns", len(columns)))
	return columns, nil
}

// TableDetails returns the catalog snapshot used for schema comparison.
// The table type comes from the catalog's table_type parameter; tables
// without one are HIVE.
func (p *GlueProvider) TableDetails(ctx context.Context, table string) (Table, error) {
	raw, columns, err := p.getTable(ctx, table)
	if err != nil {
		return Table{}, err
	}

	tableType := "HIVE"
	if v := raw.Parameters["table_type"]; v != "" {
		tableType = strings.ToUpper(v)
	}

	p.logger.Debug("resolved table details",
		zap.String("table", table),
		zap.String("table_type", tableType),
		zap.Int("columns", len(columns)))
	return Table{Name: table, Type: tableType, Columns: columns}, nil
}

func (p *GlueProvider) getTable(ctx context.Context, table string) (*types.Table, []Column, error) {
	database := "default"
	name := table
	if idx := strings.Index(table, "."); idx >= 0 {
		database, name = table[:idx], table[idx+1:]
	}

	out, err := p.client.GetTable(ctx, &glue.GetTableInput{
		DatabaseName: aws.String(database),
		Name:         aws.String(name),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("get table %s: %w", table, err)
	}
	if out.Table == nil || out.Table.StorageDescriptor == nil {
		return nil, nil, fmt.Errorf("table %s has no storage descriptor", table)
	}

	columns := make([]Column, 0, len(out.Table.StorageDescriptor.Columns)+len(out.Table.PartitionKeys))
	for _, col := range out.Table.StorageDescriptor.Columns {
		columns = append(columns, Column{
			Name:    aws.ToString(col.Name),
			Type:    aws.ToString(col.Type),
			Comment: aws.ToString(col.Comment),
		})
	}
	for _, key := range out.Table.PartitionKeys {
		columns = append(columns, Column{
			Name:    aws.ToString(key.Name),
			Type:    aws.ToString(key.Type),
			Comment: strings.TrimSpace(aws.ToString(key.Comment) + " (partition key)"),
		})
	}

	return out.Table, columns, nil
}
