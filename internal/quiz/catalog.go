package quiz

import "sort"

// Quiz is a fixed question sequence. Its content never changes at runtime.
type Quiz struct {
	Slug      string     `json:"slug"`
	Title     string     `json:"title"`
	Questions []Question `json:"-"`
}

type Catalog map[string]Quiz

func (c Catalog) Get(slug string) (Quiz, bool) {
	q, ok := c[slug]
	return q, ok
}

// List returns the quizzes ordered by slug.
func (c Catalog) List() []Quiz {
	out := make([]Quiz, 0, len(c))
	for _, q := range c {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

func DefaultCatalog() Catalog {
	return Catalog{
		"react-fundamentals": {
			Slug:  "react-fundamentals",
			Title: "React Fundamentals Quiz",
			Questions: []Question{
				{
					ID:     1,
					Prompt: "What is the virtual DOM in React?",
					Options: []string{
						"A real representation of the browser DOM",
						"A JavaScript representation of the real DOM kept in memory",
						"A styling framework for React",
						"A database for React applications",
					},
					CorrectIndex: 1,
					Explanation:  "The virtual DOM is a JavaScript representation of the real DOM that React keeps in memory to optimize rendering performance.",
				},
				{
					ID:     2,
					Prompt: "Which hook is used to manage state in functional components?",
					Options: []string{
						"useEffect",
						"useContext",
						"useState",
						"useReducer",
					},
					CorrectIndex: 2,
					Explanation:  "useState is the primary hook for managing local state in functional React components.",
				},
				{
					ID:     3,
					Prompt: "What is JSX?",
					Options: []string{
						"A JavaScript library",
						"A syntax extension for JavaScript",
						"A CSS framework",
						"A database query language",
					},
					CorrectIndex: 1,
					Explanation:  "JSX is a syntax extension for JavaScript that allows you to write HTML-like syntax in your JavaScript code.",
				},
			},
		},
	}
}
