package simmatch

// ColumnCandidates defines possible header names for auto-detecting columns.
// Candidates are tried in order; the first header matching any of them wins.
type ColumnCandidates struct {
	Text []string `json:"text" yaml:"text"`
	ID   []string `json:"id" yaml:"id"`
}

func defaultColumnCandidates() ColumnCandidates {
	return ColumnCandidates{
		Text: []string{
			"Décrire votre idée", "Sujet", "Summary", "Résumé", "Titre", "Description",
			"text", "title", "subject", "本文", "タイトル",
		},
		ID: []string{"Clé", "Issue key", "Key", "ID", "N°", "Numéro", "index", "no", "番号"},
	}
}

// DefaultColumnCandidates returns the built-in column detection candidates.
func DefaultColumnCandidates() ColumnCandidates {
	return defaultColumnCandidates().clone()
}

// withDefaults fills nil lists with the built-in candidates, allowing callers
// to override only the parts they need.
func (c ColumnCandidates) withDefaults() ColumnCandidates {
	defaults := defaultColumnCandidates()
	return ColumnCandidates{
		Text: pickStrings(c.Text, defaults.Text),
		ID:   pickStrings(c.ID, defaults.ID),
	}
}

func (c ColumnCandidates) clone() ColumnCandidates {
	return ColumnCandidates{
		Text: cloneStrings(c.Text),
		ID:   cloneStrings(c.ID),
	}
}

func pickStrings(custom, fallback []string) []string {
	if custom == nil {
		return cloneStrings(fallback)
	}
	return cloneStrings(custom)
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
