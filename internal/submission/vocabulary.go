package submission

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Vocabulary lists the genres and common keywords offered on the form.
type Vocabulary struct {
	Genres   []string `yaml:"genres"`
	Keywords []string `yaml:"keywords"`
}

func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Genres: []string{
			"Action", "Adventure", "Animated", "Animation", "Biography", "Comedy", "Crime",
			"Documentary", "Drama", "Family", "Fantasy", "History", "Horror", "Movie", "Music",
			"Musical", "Mystery", "Other", "Romance", "Science Fiction", "Short", "Sport",
			"Thriller", "Tv", "War",
		},
		Keywords: []string{
			"Film", "Relationship", "Love", "Family", "Murder", "Book", "Comedy", "War",
			"Novel", "Friendship", "Biography", "Theme", "Music", "Revenge", "Christmas",
			"Sports", "Concert", "Documentary", "Story", "Death", "Killer", "Romance", "Rock",
			"Horror", "Musical",
		},
	}
}

// LoadVocabulary reads a YAML vocabulary file. A list left out of the
// file keeps its default.
func LoadVocabulary(path string) (Vocabulary, error) {
	v := DefaultVocabulary()
	if path == "" {
		return v, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return v, fmt.Errorf("read vocabulary: %w", err)
	}

	var file Vocabulary
	if err := yaml.Unmarshal(data, &file); err != nil {
		return v, fmt.Errorf("parse vocabulary %s: %w", path, err)
	}
	if len(file.Genres) > 0 {
		v.Genres = nonBlank(file.Genres)
	}
	if len(file.Keywords) > 0 {
		v.Keywords = nonBlank(file.Keywords)
	}
	if len(v.Genres) == 0 {
		return v, fmt.Errorf("vocabulary %s has no genres", path)
	}
	return v, nil
}
