package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Tags is a product tag list. Upstream publishes it either as a JSON array
// or as a single comma separated string.
type Tags []string

func (t *Tags) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*t = nil
		return nil
	}

	if data[0] == '"' {
		var joined string
		if err := json.Unmarshal(data, &joined); err != nil {
			return fmt.Errorf("failed to decode tags: %w", err)
		}
		tags := Tags{}
		for _, tag := range strings.Split(joined, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
		*t = tags
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("failed to decode tags: %w", err)
	}
	*t = list
	return nil
}

// ImageRef identifies a product image from a variant. Upstream sends the bare
// image id, or the whole image object.
type ImageRef int64

func (r *ImageRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = 0
		return nil
	}

	switch data[0] {
	case '{':
		var image struct {
			ID int64 `json:"id"`
		}
		if err := json.Unmarshal(data, &image); err != nil {
			return fmt.Errorf("failed to decode featured image: %w", err)
		}
		*r = ImageRef(image.ID)
	case '"':
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("failed to decode featured image: %w", err)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return fmt.Errorf("failed to decode featured image id %q: %w", raw, err)
		}
		*r = ImageRef(id)
	default:
		var id int64
		if err := json.Unmarshal(data, &id); err != nil {
			return fmt.Errorf("failed to decode featured image: %w", err)
		}
		*r = ImageRef(id)
	}
	return nil
}

// ID returns the referenced image id, or zero when there is no reference
func (r *ImageRef) ID() int64 {
	if r == nil {
		return 0
	}
	return int64(*r)
}
