package render

// Theme is a colour scheme picked per rendered article.
type Theme struct {
	Name     string
	Gradient string
	Accent   string
}

var Themes = []Theme{
	{Name: "sunset", Gradient: "linear-gradient(135deg, #ff6b6b 0%, #feca57 100%)", Accent: "#ff6b6b"},
	{Name: "ocean", Gradient: "linear-gradient(135deg, #667eea 0%, #764ba2 100%)", Accent: "#667eea"},
	{Name: "forest", Gradient: "linear-gradient(135deg, #56ab2f 0%, #a8e063 100%)", Accent: "#56ab2f"},
	{Name: "berry", Gradient: "linear-gradient(135deg, #eb3349 0%, #f45c43 100%)", Accent: "#eb3349"},
	{Name: "sky", Gradient: "linear-gradient(135deg, #4facfe 0%, #00f2fe 100%)", Accent: "#4facfe"},
	{Name: "mint", Gradient: "linear-gradient(135deg, #11998e 0%, #38ef7d 100%)", Accent: "#11998e"},
	{Name: "lavender", Gradient: "linear-gradient(135deg, #a8c0ff 0%, #3f2b96 100%)", Accent: "#a8c0ff"},
	{Name: "peach", Gradient: "linear-gradient(135deg, #ffecd2 0%, #fcb69f 100%)", Accent: "#fcb69f"},
}

// foodTerms are matched against the lowercased title, first hit wins.
var foodTerms = []string{
	"pizza", "pasta", "burger", "salad", "soup", "chicken", "beef",
	"fish", "cake", "cookie", "bread", "rice", "noodles", "tacos",
	"sandwich", "steak", "salmon", "shrimp", "vegetables", "fruit",
	"dessert", "breakfast", "pancakes", "waffles", "eggs", "bacon",
}

var closingTips = []string{
	"Always use fresh, high-quality ingredients for best results",
	"Don't rush - good cooking takes time and patience",
	"Taste and adjust seasonings throughout the process",
	"Practice makes perfect - each attempt improves your skills",
	"Store leftovers properly in airtight containers",
}

type sectionHead struct {
	Icon  string
	Title string
}

var sectionHeads = [4]sectionHead{
	{Icon: "📋", Title: "Ingredients & Prep"},
	{Icon: "👨‍🍳", Title: "Cooking Steps"},
	{Icon: "💡", Title: "Pro Tips"},
	{Icon: "🍽️", Title: "Serving & Storage"},
}
