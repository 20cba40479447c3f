package seed

// File is one chapter seed file.
type File struct {
	Chapter ChapterSeed `yaml:"chapter"`
	Panels  []PanelSeed `yaml:"panels"`
}

// ChapterSeed describes a chapter.
type ChapterSeed struct {
	ID       string `yaml:"id"`
	Title    string `yaml:"title"`
	Order    int    `yaml:"order"`
	FilePath string `yaml:"file"`
}

// PanelSeed describes a panel and the concepts tagged on it.
type PanelSeed struct {
	ID             string        `yaml:"id"`
	Order          int           `yaml:"order"`
	Text           string        `yaml:"text"`
	Translation    string        `yaml:"translation"`
	AutoDisqualify bool          `yaml:"auto_disqualify"`
	Words          []WordSeed    `yaml:"words"`
	Grammar        []GrammarSeed `yaml:"grammar"`
}

// WordSeed describes a vocabulary item. Words with the same Japanese form
// share an id.
type WordSeed struct {
	ID           string `yaml:"id"`
	Japanese     string `yaml:"japanese"`
	Reading      string `yaml:"reading"`
	Meaning      string `yaml:"meaning"`
	PartOfSpeech string `yaml:"part_of_speech"`
	JLPT         *int   `yaml:"jlpt"`
}

// GrammarSeed describes a grammar structure. Structures with the same name
// share an id.
type GrammarSeed struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Explanation string `yaml:"explanation"`
	JLPT        *int   `yaml:"jlpt"`
}
