package podcast

import "fmt"

// DeletePoint returns a copy of outline without the entry at index.
func DeletePoint(outline []string, index int) ([]string, error) {
	if index < 0 || index >= len(outline) {
		return nil, fmt.Errorf("outline index %d out of range [0,%d)", index, len(outline))
	}
	out := make([]string, 0, len(outline)-1)
	out = append(out, outline[:index]...)
	return append(out, outline[index+1:]...), nil
}

// AppendPoints returns a copy of outline followed by more. The original entries
// keep their order.
func AppendPoints(outline, more []string) []string {
	out := make([]string, 0, len(outline)+len(more))
	out = append(out, outline...)
	return append(out, more...)
}

// CloneOutline copies an outline so callers can hand it out safely.
func CloneOutline(outline []string) []string {
	if outline == nil {
		return nil
	}
	return append([]string(nil), outline...)
}
