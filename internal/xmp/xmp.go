package xmp

import "strings"

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapeText replaces the five XML-reserved characters with their named
// entities. No other characters are altered.
func EscapeText(s string) string {
	return escaper.Replace(s)
}

// BuildPacket renders the XMP packet embedded into exported JPEGs: one RDF
// description carrying Dublin Core title, description and subject (keyword
// bag) plus an optional Photoshop category. Every caller-supplied string is
// escaped before interpolation.
func BuildPacket(title, description string, keywords []string, category string) string {
	var b strings.Builder

	b.WriteString("<?xpacket begin=\"\uFEFF\" id=\"W5M0MpCehiHzreSzNTczkc9d\"?>\n")
	b.WriteString("<x:xmpmeta xmlns:x=\"adobe:ns:meta/\">\n")
	b.WriteString("  <rdf:RDF xmlns:rdf=\"http://www.w3.org/1999/02/22-rdf-syntax-ns#\">\n")
	b.WriteString("    <rdf:Description rdf:about=\"\"" +
		" xmlns:dc=\"http://purl.org/dc/elements/1.1/\"" +
		" xmlns:photoshop=\"http://ns.adobe.com/photoshop/1.0/\">\n")

	writeLangAlt(&b, "dc:title", title)
	writeLangAlt(&b, "dc:description", description)

	b.WriteString("      <dc:subject>\n        <rdf:Bag>\n")
	for _, kw := range keywords {
		b.WriteString("          <rdf:li>")
		b.WriteString(EscapeText(kw))
		b.WriteString("</rdf:li>\n")
	}
	b.WriteString("        </rdf:Bag>\n      </dc:subject>\n")

	if category != "" {
		b.WriteString("      <photoshop:Category>")
		b.WriteString(EscapeText(category))
		b.WriteString("</photoshop:Category>\n")
	}

	b.WriteString("    </rdf:Description>\n")
	b.WriteString("  </rdf:RDF>\n")
	b.WriteString("</x:xmpmeta>\n")
	b.WriteString("<?xpacket end=\"w\"?>")

	return b.String()
}

// writeLangAlt emits a language-alternative container with a single
// x-default entry, the shape Dublin Core uses for title and description.
func writeLangAlt(b *strings.Builder, element, value string) {
	b.WriteString("      <")
	b.WriteString(element)
	b.WriteString("><rdf:Alt><rdf:li xml:lang=\"x-default\">")
	b.WriteString(EscapeText(value))
	b.WriteString("</rdf:li></rdf:Alt></")
	b.WriteString(element)
	b.WriteString(">\n")
}
