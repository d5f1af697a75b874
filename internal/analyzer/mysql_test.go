package analyzer

import (
	"testing"
)

func TestParseMySQLExplain(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Plan
		wantErr bool
	}{
		{
			name: "ref_access",
			raw: `{
				"query_block": {
					"select_id": 1,
					"cost_info": {"query_cost": "1.20"},
					"table": {
						"table_name": "users",
						"access_type": "ref",
						"key": "email_idx",
						"rows_examined_per_scan": 1
					}
				}
			}`,
			want: Plan{Cost: 1.2, EstimatedRows: 1, UsesIndex: true, IndexName: "email_idx"},
		},
		{
			name: "full_scan",
			raw: `{
				"query_block": {
					"select_id": 1,
					"cost_info": {"query_cost": "105.25"},
					"table": {
						"table_name": "users",
						"access_type": "ALL",
						"rows_examined_per_scan": 1000
					}
				}
			}`,
			want: Plan{Cost: 105.25, EstimatedRows: 1000, FullScan: true},
		},
		{
			name: "nested_loop_join",
			raw: `{
				"query_block": {
					"select_id": 1,
					"cost_info": {"query_cost": "42.00"},
					"nested_loop": [
						{"table": {"table_name": "users", "access_type": "ALL", "rows_examined_per_scan": 100}},
						{"table": {"table_name": "orders", "access_type": "ref", "key": "idx_orders_user", "rows_examined_per_scan": 5}}
					]
				}
			}`,
			want: Plan{Cost: 42.0, EstimatedRows: 105, UsesIndex: true, IndexName: "idx_orders_user", FullScan: true},
		},
		{
			name: "grouped_query",
			raw: `{
				"query_block": {
					"select_id": 1,
					"cost_info": {"query_cost": "12.00"},
					"grouping_operation": {
						"table": {
							"table_name": "orders",
							"access_type": "index",
							"key": "idx_orders_status",
							"rows_examined_per_scan": 80
						}
					}
				}
			}`,
			want: Plan{Cost: 12.0, EstimatedRows: 80, UsesIndex: true, IndexName: "idx_orders_status"},
		},
		{
			name: "ordered_query",
			raw: `{
				"query_block": {
					"select_id": 1,
					"cost_info": {"query_cost": "9.50"},
					"ordering_operation": {
						"table": {
							"table_name": "items",
							"access_type": "ALL",
							"rows_examined_per_scan": 40
						}
					}
				}
			}`,
			want: Plan{Cost: 9.5, EstimatedRows: 40, FullScan: true},
		},
		{
			name: "const_lookup",
			raw: `{
				"query_block": {
					"select_id": 1,
					"cost_info": {"query_cost": "1.00"},
					"table": {
						"table_name": "users",
						"access_type": "const",
						"key": "PRIMARY",
						"rows_examined_per_scan": 1
					}
				}
			}`,
			want: Plan{Cost: 1.0, EstimatedRows: 1, UsesIndex: true, IndexName: "PRIMARY"},
		},
		{
			name:    "invalid_json",
			raw:     `{"query_block": nope`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := parseMySQLExplain(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseMySQLExplain: %v", err)
			}
			if plan.Backend != "mysql" {
				t.Errorf("Backend = %q, want mysql", plan.Backend)
			}
			if plan.Cost != tt.want.Cost {
				t.Errorf("Cost = %v, want %v", plan.Cost, tt.want.Cost)
			}
			if plan.EstimatedRows != tt.want.EstimatedRows {
				t.Errorf("EstimatedRows = %d, want %d", plan.EstimatedRows, tt.want.EstimatedRows)
			}
			if plan.UsesIndex != tt.want.UsesIndex {
				t.Errorf("UsesIndex = %v, want %v", plan.UsesIndex, tt.want.UsesIndex)
			}
			if plan.IndexName != tt.want.IndexName {
				t.Errorf("IndexName = %q, want %q", plan.IndexName, tt.want.IndexName)
			}
			if plan.FullScan != tt.want.FullScan {
				t.Errorf("FullScan = %v, want %v", plan.FullScan, tt.want.FullScan)
			}
		})
	}
}

func TestForDialect(t *testing.T) {
	tests := []struct {
		dialect string
		wantErr bool
	}{
		{"sqlite", false},
		{"sqlite3", false},
		{"postgres", false},
		{"postgresql", false},
		{"mysql", false},
		{"oracle", true},
		{"", true},
	}
	for _, tt := range tests {
		a, err := ForDialect(nil, tt.dialect)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ForDialect(%q): expected error", tt.dialect)
			}
			continue
		}
		if err != nil {
			t.Errorf("ForDialect(%q): %v", tt.dialect, err)
		}
		if a == nil {
			t.Errorf("ForDialect(%q): nil analyzer", tt.dialect)
		}
	}
}
