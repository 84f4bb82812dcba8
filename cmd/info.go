package cmd

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/photo-tagger/internal/exif"
	"github.com/kozaktomas/photo-tagger/internal/jpeg"
)

var infoCmd = &cobra.Command{
	Use:   "info [file]",
	Short: "Show metadata embedded in a photo",
	Long: `Read a JPEG file and print the EXIF tags found in its APP1 segment,
decoding the UCS-2 encoded Windows XP* tags, and report whether an XMP
packet is present.

Examples:
  # Inspect a tagged photo
  photo-tagger info tagged/a_red_car(Nature).jpg`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

// formatValue renders a tag value for display. XP* tags carry UCS-2
// text, UserComment a charset prefix, the rest follow their TIFF type.
func formatValue(tag uint16, v exif.Value) string {
	switch tag {
	case exif.TagXPTitle, exif.TagXPComment, exif.TagXPAuthor, exif.TagXPKeywords, exif.TagXPSubject:
		return exif.DecodeUCS2(v.Data)
	case exif.TagUserComment:
		return string(bytes.TrimRight(bytes.TrimPrefix(v.Data, []byte("ASCII\x00\x00\x00")), "\x00"))
	}

	switch v.Type {
	case exif.TypeASCII:
		return v.ASCIIString()
	case exif.TypeShort:
		var parts []string
		for i := 0; i+2 <= len(v.Data); i += 2 {
			parts = append(parts, strconv.Itoa(int(binary.LittleEndian.Uint16(v.Data[i:]))))
		}
		return strings.Join(parts, " ")
	case exif.TypeLong:
		var parts []string
		for i := 0; i+4 <= len(v.Data); i += 4 {
			parts = append(parts, strconv.Itoa(int(binary.LittleEndian.Uint32(v.Data[i:]))))
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprintf("(%d bytes)", len(v.Data))
	}
}

func runInfo(cmd *cobra.Command, args []string) error {
	path := args[0]

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !jpeg.HasSOI(data) {
		return fmt.Errorf("%s is not a JPEG file", path)
	}

	fmt.Printf("File: %s (%d bytes)\n", path, len(data))

	exifSeg, err := jpeg.FindSegment(data, jpeg.MarkerAPP1, jpeg.ExifSignature)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", path, err)
	}
	if exifSeg == nil {
		fmt.Println("EXIF: none")
	} else {
		builder, err := exif.Parse(exifSeg.Payload)
		if err != nil {
			return fmt.Errorf("failed to parse EXIF block: %w", err)
		}
		fmt.Printf("EXIF: %d byte APP1 segment at offset %d\n\n", exifSeg.Length, exifSeg.Offset)
		printTags(builder)
	}

	xmpSeg, err := jpeg.FindSegment(data, jpeg.MarkerAPP1, jpeg.XMPSignature)
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", path, err)
	}
	if xmpSeg == nil {
		fmt.Println("\nXMP: none")
	} else {
		packet := len(xmpSeg.Payload) - len(jpeg.XMPSignature)
		fmt.Printf("\nXMP: %d byte packet at offset %d\n", packet, xmpSeg.Offset)
	}

	return nil
}

func printTags(builder *exif.Builder) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "IFD\tTAG\tVALUE")
	for _, ifd := range []string{exif.IFDZeroth, exif.IFDExif, exif.IFDGPS, exif.IFDFirst} {
		for _, tag := range builder.Tags(ifd) {
			v, ok := builder.Get(ifd, tag)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", ifd, exif.TagName(tag), formatValue(tag, v))
		}
	}
}
