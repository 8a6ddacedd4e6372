package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/glue"
	"github.com/aws/aws-sdk-go-v2/service/glue/types"
	"go.uber.org/zap"
)

// fakeGlue captures GetTable inputs and returns a canned response.
type fakeGlue struct {
	GetTableFunc func(params *glue.GetTableInput) (*glue.GetTableOutput, error)

	calls     int
	lastInput *glue.GetTableInput
}

func (f *fakeGlue) GetTable(_ context.Context, params *glue.GetTableInput, _ ...func(*glue.Options)) (*glue.GetTableOutput, error) {
	f.calls++
	f.lastInput = params
	return f.GetTableFunc(params)
}

func orderTableOutput() *glue.GetTableOutput {
	return &glue.GetTableOutput{
		Table: &types.Table{
			Name: aws.String("fact_orders"),
			StorageDescriptor: &types.StorageDescriptor{
				Columns: []types.Column{
					{Name: aws.String("order_id"), Type: aws.String("bigint"), Comment: aws.String("order identifier")},
					{Name: aws.String("amount"), Type: aws.String("decimal(10,2)")},
				},
			},
			PartitionKeys: []types.Column{
				{Name: aws.String("ds"), Type: aws.String("string"), Comment: aws.String("ingest date")},
			},
		},
	}
}

// TestGlueProvider_TableSchema tests that catalog columns come back in order
// with partition keys appended and annotated.
func TestGlueProvider_TableSchema(t *testing.T) {
	api := &fakeGlue{GetTableFunc: func(*glue.GetTableInput) (*glue.GetTableOutput, error) {
		return orderTableOutput(), nil
	}}
	provider := NewGlueProvider(api, zap.NewNop())

	columns, err := provider.TableSchema(context.Background(), "legacy_db.fact_orders")
	if err != nil {
		t.Fatalf("TableSchema returned error: %v", err)
	}

	want := []Column{
		{Name: "order_id", Type: "bigint", Comment: "order identifier"},
		{Name: "amount", Type: "decimal(10,2)"},
		{Name: "ds", Type: "string", Comment: "ingest date (partition key)"},
	}
	if len(columns) != len(want) {
		t.Fatalf("got %d columns, want %d", len(columns), len(want))
	}
	for i, col := range columns {
		if col != want[i] {
			t.Errorf("column %d: got %+v, want %+v", i, col, want[i])
		}
	}

	if got := aws.ToString(api.lastInput.DatabaseName); got != "legacy_db" {
		t.Errorf("database: got %q, want %q", got, "legacy_db")
	}
	if got := aws.ToString(api.lastInput.Name); got != "fact_orders" {
		t.Errorf("table name: got %q, want %q", got, "fact_orders")
	}
}

// TestGlueProvider_DefaultDatabase tests that an unqualified table name is
// looked up in the default database.
func TestGlueProvider_DefaultDatabase(t *testing.T) {
	api := &fakeGlue{GetTableFunc: func(*glue.GetTableInput) (*glue.GetTableOutput, error) {
		return orderTableOutput(), nil
	}}
	provider := NewGlueProvider(api, zap.NewNop())

	if _, err := provider.TableSchema(context.Background(), "fact_orders"); err != nil {
		t.Fatalf("TableSchema returned error: %v", err)
	}
	if got := aws.ToString(api.lastInput.DatabaseName); got != "default" {
		t.Errorf("database: got %q, want %q", got, "default")
	}
}

// TestGlueProvider_PartitionKeyWithoutComment tests that the partition
// marker stands alone when the catalog has no comment for the key.
func TestGlueProvider_PartitionKeyWithoutComment(t *testing.T) {
	api := &fakeGlue{GetTableFunc: func(*glue.GetTableInput) (*glue.GetTableOutput, error) {
		return &glue.GetTableOutput{
			Table: &types.Table{
				StorageDescriptor: &types.StorageDescriptor{},
				PartitionKeys: []types.Column{
					{Name: aws.String("ds"), Type: aws.String("string")},
				},
			},
		}, nil
	}}
	provider := NewGlueProvider(api, zap.NewNop())

	columns, err := provider.TableSchema(context.Background(), "legacy_db.fact_orders")
	if err != nil {
		t.Fatalf("TableSchema returned error: %v", err)
	}
	if len(columns) != 1 {
		t.Fatalf("got %d columns, want 1", len(columns))
	}
	if columns[0].Comment != "(partition key)" {
		t.Errorf("comment: got %q, want %q", columns[0].Comment, "(partition key)")
	}
}

// TestGlueProvider_TableDetails tests that the table type comes from the
// catalog parameter, normalized to upper case.
func TestGlueProvider_TableDetails(t *testing.T) {
	api := &fakeGlue{GetTableFunc: func(*glue.GetTableInput) (*glue.GetTableOutput, error) {
		out := orderTableOutput()
		out.Table.Parameters = map[string]string{"table_type": "iceberg"}
		return out, nil
	}}
	provider := NewGlueProvider(api, zap.NewNop())

	table, err := provider.TableDetails(context.Background(), "prod_db.fact_orders")
	if err != nil {
		t.Fatalf("TableDetails returned error: %v", err)
	}
	if table.Name != "prod_db.fact_orders" {
		t.Errorf("name: got %q, want %q", table.Name, "prod_db.fact_orders")
	}
	if table.Type != "ICEBERG" {
		t.Errorf("type: got %q, want %q", table.Type, "ICEBERG")
	}
	if len(table.Columns) != 3 {
		t.Errorf("got %d columns, want 3", len(table.Columns))
	}
}

// TestGlueProvider_TableDetailsDefaultType tests that tables without a
// table_type parameter are treated as Hive tables.
func TestGlueProvider_TableDetailsDefaultType(t *testing.T) {
	api := &fakeGlue{GetTableFunc: func(*glue.GetTableInput) (*glue.GetTableOutput, error) {
		return orderTableOutput(), nil
	}}
	provider := NewGlueProvider(api, zap.NewNop())

	table, err := provider.TableDetails(context.Background(), "legacy_db.fact_orders")
	if err != nil {
		t.Fatalf("TableDetails returned error: %v", err)
	}
	if table.Type != "HIVE" {
		t.Errorf("type: got %q, want %q", table.Type, "HIVE")
	}
}

// TestGlueProvider_GetTableError tests that API failures surface as errors.
func TestGlueProvider_GetTableError(t *testing.T) {
	api := &fakeGlue{GetTableFunc: func(*glue.GetTableInput) (*glue.GetTableOutput, error) {
		return nil, errors.New("EntityNotFoundException")
	}}
	provider := NewGlueProvider(api, zap.NewNop())

	columns, err := provider.TableSchema(context.Background(), "legacy_db.missing")
	if err == nil {
		t.Fatal("expected error for failed GetTable")
	}
	if columns != nil {
		t.Errorf("expected nil columns, got %v", columns)
	}
}

// TestGlueProvider_MissingStorageDescriptor tests the guard for tables the
// catalog returns without column metadata.
func TestGlueProvider_MissingStorageDescriptor(t *testing.T) {
	api := &fakeGlue{GetTableFunc: func(*glue.GetTableInput) (*glue.GetTableOutput, error) {
		return &glue.GetTableOutput{Table: &types.Table{}}, nil
	}}
	provider := NewGlueProvider(api, zap.NewNop())

	if _, err := provider.TableSchema(context.Background(), "legacy_db.fact_orders"); err == nil {
		t.Fatal("expected error for missing storage descriptor")
	}
}
