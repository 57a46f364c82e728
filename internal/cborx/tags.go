package cborx

import "time"

// FullDate is tag 1004: a date-without-time string, "YYYY-MM-DD".
// Used for birth_date/issue_date/expiry_date-style mdoc elements.
type FullDate struct {
	Value time.Time
}

// MarshalCBOR emits tag 1004 wrapping the RFC 3339 date-only string.
func (d FullDate) MarshalCBOR() ([]byte, error) {
	return Marshal(Tag{Number: TagFullDate, Content: d.Value.Format("2006-01-02")})
}

// UnmarshalCBOR accepts either a tag-1004-wrapped date string or a
// bare date string, matching how lenient real-world issuers are.
func (d *FullDate) UnmarshalCBOR(data []byte) error {
	var tag Tag
	if err := Unmarshal(data, &tag); err == nil && tag.Number == TagFullDate {
		s, ok := tag.Content.(string)
		if !ok {
			return parseFullDateInto(d, "")
		}
		return parseFullDateInto(d, s)
	}
	var s string
	if err := Unmarshal(data, &s); err != nil {
		return err
	}
	return parseFullDateInto(d, s)
}

func parseFullDateInto(d *FullDate, s string) error {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return err
	}
	d.Value = t
	return nil
}
