package document

// Sanitize returns a copy of v with every Absent field removed, at any depth.
//
// v must be a record (see AsRecord); sequences, nil, Absent and scalars fail
// with ErrInvalidInputKind. Nested records are sanitized recursively and kept
// even when they end up empty. Slices are leaves: they are kept as they are,
// including any Absent elements they hold. The input is never modified.
func Sanitize(v any) (Fields, error) {
	if IsAbsent(v) {
		return nil, invalidKind(v)
	}
	rec, ok := AsRecord(v)
	if !ok {
		return nil, invalidKind(v)
	}
	return sanitizeRecord(rec), nil
}

func sanitizeRecord(rec Fields) Fields {
	out := make(Fields, len(rec))
	for key, entry := range rec {
		if IsAbsent(entry) {
			continue
		}
		if sub, ok := AsRecord(entry); ok {
			out[key] = sanitizeRecord(sub)
			continue
		}
		out[key] = entry
	}
	return out
}
