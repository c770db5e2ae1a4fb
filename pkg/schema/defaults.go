package schema

// DefaultColumns returns the static target column set used when no
// destination table has been selected.
func DefaultColumns() []*TargetColumn {
	return []*TargetColumn{
		{
			Name:        "account_id",
			DataType:    "string",
			Description: "Unique identifier for the account",
			Examples:    []string{"AC12345", "10042", "ACCT-987654321"},
		},
		{
			Name:        "balance",
			DataType:    "number",
			Description: "Current account balance in currency units",
			Examples:    []string{"1250.00", "$5,423.50", "10000.75"},
		},
		{
			Name:        "open_date",
			DataType:    "date",
			Description: "Date when the account was opened",
			Examples:    []string{"2020-01-15", "2019-06-30", "2022-12-01"},
		},
		{
			Name:        "status",
			DataType:    "string",
			Description: "Current status of the account",
			Examples:    []string{"active", "inactive", "pending"},
		},
		{
			Name:        "customer_name",
			DataType:    "string",
			Description: "Full name of the customer or account holder",
			Examples:    []string{"John Doe", "Jane Smith", "Acme Corporation"},
		},
	}
}
