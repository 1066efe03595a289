package domain

import "time"

// LogicOperator joins the conditions of a ConditionalLogic block.
type LogicOperator string

const (
	LogicAnd LogicOperator = "AND"
	LogicOr  LogicOperator = "OR"
)

// Condition is a single visibility rule evaluated by the form renderer.
type Condition struct {
	FieldID  string `bson:"field_id" json:"fieldId"`
	Operator string `bson:"operator" json:"operator"` // equals, not_equals, contains
	Value    any    `bson:"value" json:"value"`
}

// ConditionalLogic is stored with a binding but evaluated client side.
type ConditionalLogic struct {
	Enabled    bool          `bson:"enabled" json:"enabled"`
	Operator   LogicOperator `bson:"operator" json:"operator"`
	Conditions []Condition   `bson:"conditions" json:"conditions"`
}

// FieldBinding maps one form question to an Airtable field. The local
// answer key of a binding is its ExternalFieldID.
type FieldBinding struct {
	ExternalFieldID   string           `bson:"external_field_id" json:"externalFieldId"`
	ExternalFieldName string           `bson:"external_field_name" json:"externalFieldName"`
	ExternalFieldType string           `bson:"external_field_type" json:"externalFieldType"`
	Required          bool             `bson:"required" json:"required"`
	Conditional       ConditionalLogic `bson:"conditional_logic" json:"conditionalLogic"`
}

// Form is a public form bound to one Airtable base and table.
type Form struct {
	ID        string         `bson:"_id,omitempty" json:"id"`
	OwnerID   string         `bson:"owner_id" json:"ownerId"`
	Name      string         `bson:"name" json:"name"`
	BaseID    string         `bson:"base_id" json:"baseId"`
	TableID   string         `bson:"table_id" json:"tableId"`
	Fields    []FieldBinding `bson:"fields" json:"fields"`
	CreatedAt time.Time      `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time      `bson:"updated_at" json:"updatedAt"`
}

// Normalize fills defaults that the form builder may omit.
func (f *Form) Normalize() {
	for i := range f.Fields {
		if f.Fields[i].Conditional.Operator == "" {
			f.Fields[i].Conditional.Operator = LogicAnd
		}
	}
}
