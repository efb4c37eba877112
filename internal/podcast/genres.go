package podcast

var genres = map[Language][]string{
	LanguageJapanese: {
		"科学", "歴史", "生物", "地理", "海洋", "宇宙", "工学", "食べ物", "文化", "遊び",
		"心理学", "経済", "建築", "哲学", "音楽", "映画", "スポーツ", "医療", "環境", "言語",
		"宗教", "政治", "社会", "神話", "芸術", "ファッション", "テクノロジー", "文学", "都市", "教育",
	},
	LanguageEnglish: {
		"Science", "History", "Biology", "Geography", "Oceanography", "Space", "Engineering", "Food", "Culture", "Games",
		"Psychology", "Economics", "Architecture", "Philosophy", "Music", "Movies", "Sports", "Medicine", "Environment", "Language",
		"Religion", "Politics", "Society", "Mythology", "Art", "Fashion", "Technology", "Literature", "Urban Studies", "Education",
	},
}

// Genres returns the genre catalogue for a language.
func Genres(lang Language) []string {
	return append([]string(nil), genres[lang]...)
}

// IsGenre reports whether genre is in the catalogue for lang.
func IsGenre(lang Language, genre string) bool {
	for _, g := range genres[lang] {
		if g == genre {
			return true
		}
	}
	return false
}
