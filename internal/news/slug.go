package news

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// slugTimestampLayout はslugの末尾に付与するタイムスタンプ形式（UTC）。
const slugTimestampLayout = "20060102150405"

// slugMaxBaseLength はタイムスタンプを除いたslug本体の最大長。
const slugMaxBaseLength = 200

var (
	// whitespaceRuns は連続する空白文字。ハイフン1個に置換される。
	whitespaceRuns = regexp.MustCompile(`\s+`)
	// disallowedSlugChars はslugに残さない文字。
	// 小文字英数字、ハイフン、ベンガル文字（U+0980からU+09FF）のみを許可する。
	disallowedSlugChars = regexp.MustCompile("[^a-z0-9ঀ-৿-]+")
	// hyphenRuns は連続するハイフン。1個に集約される。
	hyphenRuns = regexp.MustCompile(`-{2,}`)
)

// diacriticsRemover はUnicode正規化でダイアクリティカルマークを除去する。
// NFDで分解した後、結合文字（Mnカテゴリ）を取り除いてNFCで再結合する。
var diacriticsRemover = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// GenerateSlug は記事タイトルからURL安全なslugを生成する。
// タイトルを小文字化してダイアクリティカルマークを除去し、空白を
// ハイフンに置換する。ベンガル文字はそのまま保持する。本体は200文字で
// 打ち切り、一意性のためUTCタイムスタンプを末尾に付与する。
func GenerateSlug(title string, now time.Time) string {
	base := strings.ToLower(strings.TrimSpace(title))

	if normalized, _, err := transform.String(diacriticsRemover, base); err == nil {
		base = normalized
	}

	base = whitespaceRuns.ReplaceAllString(base, "-")
	base = disallowedSlugChars.ReplaceAllString(base, "")
	base = hyphenRuns.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")

	if runes := []rune(base); len(runes) > slugMaxBaseLength {
		base = strings.Trim(string(runes[:slugMaxBaseLength]), "-")
	}

	if base == "" {
		base = "news"
	}

	return base + "-" + now.UTC().Format(slugTimestampLayout)
}
