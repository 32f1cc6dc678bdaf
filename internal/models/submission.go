package models

// Field is a single submitted form field. Submissions keep fields as a slice
// rather than a map because the fallback rendering must reproduce them in
// submission order.
type Field struct {
	Name  string
	Value string
}

// Submission is one inbound contact-form submission. It lives for the
// duration of a single request and is never persisted.
type Submission struct {
	SiteID string
	Fields []Field
}

// FieldMap flattens the fields into a name → value map for handing to a
// site-specific template. Duplicate names keep the last value.
func (s Submission) FieldMap() map[string]string {
	m := make(map[string]string, len(s.Fields))
	for _, f := range s.Fields {
		m[f.Name] = f.Value
	}
	return m
}

// Email is a rendered message ready for delivery.
type Email struct {
	Subject   string
	FromName  string
	FromEmail string
	To        string
	HTMLBody  string
}
