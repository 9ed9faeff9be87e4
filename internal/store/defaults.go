package store

// DefaultGroupID is the sentinel id of the built-in block group. The group
// cannot be deleted, and a full reset or an import missing it recreates it
// from the factory templates below.
const DefaultGroupID = "group-0"

// DefaultGroupName is the built-in group's display name.
const DefaultGroupName = "Default Blocks"

// FactoryGroups returns a fresh copy of the factory block groups: one
// default group with the seven seed templates.
func FactoryGroups() map[string]BlockGroup {
	return map[string]BlockGroup{
		DefaultGroupID: {
			Name: DefaultGroupName,
			Blocks: map[string]BlockTemplate{
				"heading1": {
					Name:    "Heading (H1)",
					Content: "<h1>Heading</h1>",
				},
				"heading2": {
					Name:    "Subheading (H2)",
					Content: "<h2>Subheading</h2>",
				},
				"heading3": {
					Name:    "Subheading (H3)",
					Content: "<h3>Subheading</h3>",
				},
				"paragraph": {
					Name:    "Paragraph",
					Content: "<p>Type your text here...</p>",
				},
				"bullet-list": {
					Name:    "Bullet list",
					Content: "<ul><li>First item</li><li>Second item</li><li>Third item</li></ul>",
				},
				"numbered-list": {
					Name:    "Numbered list",
					Content: "<ol><li>First step</li><li>Second step</li><li>Third step</li></ol>",
				},
				"image": {
					Name:    "Image",
					Content: `<div class="image-placeholder">Click to upload an image</div>`,
				},
			},
		},
	}
}
