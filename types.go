package mindata

// Column describes a single generated table column. Immutable once emitted
// by the flattener.
type Column struct {
	Name           string `json:"name"`
	SQLType        string `json:"sqlType"`
	Required       bool   `json:"required"`
	IsReference    bool   `json:"isReference"`
	ReferenceTable string `json:"referenceTable,omitempty"`
	EntityName     string `json:"entityName,omitempty"`
}

// Table is a rendered CREATE TABLE statement together with its name.
type Table struct {
	TableName string `json:"tableName"`
	SQL       string `json:"sql"`
}

// Junction describes an array relationship rendered as an associative table
// with a composite primary key.
type Junction struct {
	TableName     string `json:"tableName"`
	ParentTable   string `json:"parentTable"`
	ParentKey     string `json:"parentKey"`
	ParentKeyType string `json:"parentKeyType"`
	ChildTable    string `json:"childTable"`
	ChildKey      string `json:"childKey"`
	ChildKeyType  string `json:"childKeyType"`
}

// Pagination is the paging block attached to every list response.
type Pagination struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	Total       int  `json:"total"`
	TotalPages  int  `json:"totalPages"`
	HasNext     bool `json:"hasNext"`
	HasPrevious bool `json:"hasPrevious"`
}

// ListResult is the standard list-endpoint payload.
type ListResult struct {
	Data       []map[string]any `json:"data"`
	Pagination Pagination       `json:"pagination"`
}

// NewPagination computes the paging block for a page over total rows.
func NewPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{
		Page:        page,
		Limit:       limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNext:     page*limit < total,
		HasPrevious: page > 1,
	}
}
