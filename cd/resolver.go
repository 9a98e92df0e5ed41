package cd

import (
	"fmt"

	"orderscout/page"
)

// resolverJS finds every match for a locator, reports the count and whether
// one is visible, and optionally tags the first visible match with mark.
// Text locators keep only the innermost elements containing the text, so a
// wrapping <body> never wins over the button it contains.
const resolverJS = `(function(kind, query, text, attr, mark) {
	function matches() {
		if (kind === "xpath") {
			const out = [];
			const snap = document.evaluate(query, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
			for (let i = 0; i < snap.snapshotLength; i++) {
				const n = snap.snapshotItem(i);
				if (n.nodeType === Node.ELEMENT_NODE) out.push(n);
			}
			return out;
		}
		if (kind === "text") {
			const needle = text.toLowerCase();
			const hits = Array.from(document.querySelectorAll(query)).filter(function(el) {
				return (el.innerText || el.textContent || el.value || "").toLowerCase().includes(needle);
			});
			return hits.filter(function(el) {
				return !hits.some(function(other) { return other !== el && el.contains(other); });
			});
		}
		return Array.from(document.querySelectorAll(query));
	}
	function visible(el) {
		const style = window.getComputedStyle(el);
		if (style.display === "none" || style.visibility === "hidden" || style.opacity === "0") return false;
		const box = el.getBoundingClientRect();
		return box.width > 0 && box.height > 0;
	}
	let els;
	try {
		els = matches();
	} catch (e) {
		return {count: 0, visible: false, text: ""};
	}
	const first = els.find(visible);
	if (mark) {
		document.querySelectorAll("[" + attr + "]").forEach(function(el) { el.removeAttribute(attr); });
		if (first) first.setAttribute(attr, mark);
	}
	return {
		count: els.length,
		visible: !!first,
		text: first ? (first.innerText || first.value || first.textContent || "").trim() : ""
	};
})`

// resolverExpr builds the script call for loc. An empty mark only reads.
func resolverExpr(loc page.Locator, mark string) (string, error) {
	var kind string
	switch loc.Kind {
	case page.CSS:
		kind = "css"
	case page.XPath:
		kind = "xpath"
	case page.Text:
		kind = "text"
	default:
		return "", fmt.Errorf("unsupported locator kind %v", loc.Kind)
	}
	args, err := json.Marshal([]string{kind, loc.Query, loc.Text, markerAttr, mark})
	if err != nil {
		return "", fmt.Errorf("encoding locator: %w", err)
	}
	// A JSON array literal spreads into the call's argument list.
	return fmt.Sprintf("%s(...%s)", resolverJS, args), nil
}
