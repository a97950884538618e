package descriptions

import "sort"

// Tool descriptions with practical examples and use cases

const (
	PDFUnlockClassifyDescription = `Unlock a password protected PDF and classify the company and currency it refers to.

**When to use:** You have PDF bytes (statements, invoices) that may be encrypted with one of a small set of known passwords and need to know which company and currency they belong to.

**How it works:** Each candidate password is tried in order and the first one that opens the document wins. Unencrypted documents pass through unchanged. The text of every page is extracted and scanned for known company names (the earliest mention wins) and for a "Currency:" label.

**Parameters:**
• content: the PDF encoded as standard base64
• passwords: candidate passwords in the order to try them; the empty string means "no password". When omitted the server's default list is used
• include_pdf: also return the unlocked PDF as base64

**Examples:**
• Route a bank statement: "Unlock statement.pdf with passwords [\"1234\", \"secret\"] and tell me the company"
• Check the currency of an invoice: "Classify this invoice and return the currency code"

**Errors:** UNLOCK_FAILED when no candidate opens the document, EXTRACTION_FAILED when the unlocked document has unreadable pages.`

	PDFUnlockClassifyFileDescription = `Unlock and classify a PDF stored in the server's directory.

**When to use:** The PDF is already on disk next to the server and you want the classification, optionally writing the unlocked copy back to disk.

**Parameters:**
• path: file path, relative to the configured directory or absolute inside it
• passwords: candidate passwords in order; defaults apply when omitted
• output_path: optional path, inside the configured directory, for the unlocked PDF

**Examples:**
• "Classify reports/2024-03.pdf"
• "Unlock locked.pdf with password 0000 and save it as unlocked_locked.pdf"

**Best practices:** Paths outside the configured directory are rejected. Use pdf_server_info to see the directory and limits.`

	PDFServerInfoDescription = `Get server information, limits, and the lookup tables in use.

**When to use:** Before sending documents, to learn the maximum file size, the candidate password limit, the configured directory, and which company codes the classifier can return.

**Examples:**
• "Which company codes can this server detect?"
• "What is the largest PDF I can send?"`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	"pdf_unlock_classify":      PDFUnlockClassifyDescription,
	"pdf_unlock_classify_file": PDFUnlockClassifyFileDescription,
	"pdf_server_info":          PDFServerInfoDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the names of all described tools in sorted order
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
