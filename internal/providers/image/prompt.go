package image

import (
	"fmt"
	"strings"
)

// ColoringNegativePrompt lists artefacts a coloring page must not contain.
const ColoringNegativePrompt = "shading, grey fills, gradients, colour, photorealism, hatching, text, watermark, cropped subjects"

// BuildRemixPrompt turns a short scene description into the instruction sent
// alongside the source coloring page.
func BuildRemixPrompt(scene string) string {
	scene = strings.TrimSpace(scene)
	lines := []string{
		"Redraw the attached coloring page as a brand new coloring page.",
		"Keep every recognizable subject and accessory from the original drawing, with the same proportions and defining features.",
		fmt.Sprintf("Place them in this new scene: %s.", strings.TrimRight(scene, ".")),
		"Style: black-and-white line art for a children's coloring book, bold clean outlines, pure white background.",
		"No shading and no grey or colored fills; every area must be an empty outline ready to color.",
		"Avoid: " + ColoringNegativePrompt + ".",
	}
	return strings.Join(lines, "\n")
}
