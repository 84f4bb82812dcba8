package xmp

import (
	"encoding/xml"
	"io"
	"strings"
	"testing"
)

func TestEscapeText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain text untouched", "sunset over mountains", "sunset over mountains"},
		{"ampersand", "black & white", "black &amp; white"},
		{"angle brackets", "<tag>", "&lt;tag&gt;"},
		{"double quote", `say "cheese"`, "say &quot;cheese&quot;"},
		{"single quote", "it's", "it&apos;s"},
		{"all five", `<a href="x">&'b'</a>`, "&lt;a href=&quot;x&quot;&gt;&amp;&apos;b&apos;&lt;/a&gt;"},
		{"unicode untouched", "Praha – Vyšehrad", "Praha – Vyšehrad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EscapeText(tt.input); got != tt.expected {
				t.Errorf("EscapeText(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// unescapeXML reverses entity escaping with the standard XML decoder.
func unescapeXML(t *testing.T, escaped string) string {
	t.Helper()
	var v struct {
		Text string `xml:",chardata"`
	}
	if err := xml.Unmarshal([]byte("<v>"+escaped+"</v>"), &v); err != nil {
		t.Fatalf("Escaped text %q is not valid XML content: %v", escaped, err)
	}
	return v.Text
}

func TestEscapeText_RoundTrip(t *testing.T) {
	inputs := []string{
		`He said "hi" & left`,
		"<<<>>>",
		"'''",
		`&amp;`, // pre-escaped input must survive a round trip too
		`a<b>"c"&'d'`,
	}
	for _, in := range inputs {
		if got := unescapeXML(t, EscapeText(in)); got != in {
			t.Errorf("Round trip of %q produced %q", in, got)
		}
	}
}

func TestBuildPacket_Shape(t *testing.T) {
	packet := BuildPacket("Sunset", "A warm sunset", []string{"sunset", "evening", "sky"}, "Nature")

	wantParts := []string{
		`<x:xmpmeta xmlns:x="adobe:ns:meta/">`,
		`<rdf:Description rdf:about=""`,
		`<dc:title><rdf:Alt><rdf:li xml:lang="x-default">Sunset</rdf:li></rdf:Alt></dc:title>`,
		`<dc:description><rdf:Alt><rdf:li xml:lang="x-default">A warm sunset</rdf:li></rdf:Alt></dc:description>`,
		`<rdf:li>sunset</rdf:li>`,
		`<rdf:li>evening</rdf:li>`,
		`<rdf:li>sky</rdf:li>`,
		`<photoshop:Category>Nature</photoshop:Category>`,
	}
	for _, part := range wantParts {
		if !strings.Contains(packet, part) {
			t.Errorf("Packet missing %q", part)
		}
	}
}

func TestBuildPacket_OmitsEmptyCategory(t *testing.T) {
	packet := BuildPacket("Title", "Description", []string{"kw"}, "")
	if strings.Contains(packet, "photoshop:Category") {
		t.Errorf("Category element present for empty category")
	}
}

func TestBuildPacket_EmptyKeywords(t *testing.T) {
	packet := BuildPacket("Title", "Description", nil, "Travel")
	if !strings.Contains(packet, "<rdf:Bag>") {
		t.Errorf("Subject bag missing for empty keyword list")
	}
	assertWellFormed(t, packet)
}

func TestBuildPacket_EscapesUserText(t *testing.T) {
	packet := BuildPacket(
		`<script>alert("x")</script>`,
		"Tom & Jerry's day",
		[]string{`"quoted" keyword`, "a<b"},
		"R&D",
	)

	if strings.Contains(packet, "<script>") {
		t.Errorf("Unescaped markup leaked into the packet")
	}
	for _, want := range []string{
		"&lt;script&gt;",
		"Tom &amp; Jerry&apos;s day",
		"&quot;quoted&quot; keyword",
		"a&lt;b",
		"R&amp;D",
	} {
		if !strings.Contains(packet, want) {
			t.Errorf("Packet missing escaped form %q", want)
		}
	}
	assertWellFormed(t, packet)
}

func TestBuildPacket_WellFormed(t *testing.T) {
	packet := BuildPacket("Sunset", "A warm sunset", []string{"sunset", "sky"}, "Nature")
	assertWellFormed(t, packet)
}

// assertWellFormed runs the packet through the standard XML tokenizer.
func assertWellFormed(t *testing.T, packet string) {
	t.Helper()
	dec := xml.NewDecoder(strings.NewReader(packet))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return
		}
		if err != nil {
			t.Fatalf("Packet is not well-formed XML: %v", err)
		}
	}
}
