package quote

import "golang.org/x/net/html"

// trimTrailing removes trailing empty nodes from container. It walks the
// children backwards, dropping blank text and elements without visible
// content, then descends into the first visible element and repeats there.
// Empty nodes before visible content are kept: "<div><br></div>" spacers
// in the middle of a message are line breaks.
func trimTrailing(container *html.Node) {
	for n := container; n != nil; {
		var next *html.Node
		for c := n.LastChild; c != nil; {
			prev := c.PrevSibling
			if hasVisibleContent(c) {
				if c.Type == html.ElementNode {
					next = c
				}
				break
			}
			n.RemoveChild(c)
			c = prev
		}
		n = next
	}
}
