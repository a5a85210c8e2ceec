// Package tokenizer normalises article text into a token set. It lower-cases
// input, splits on non-alphanumeric boundaries, and removes the configured
// language's stop words. The token set is the ephemeral input to signature
// generation and is never retained.
package tokenizer

import (
	"strings"
	"unicode"
)

var stopWords = map[string]map[string]struct{}{
	"english": wordSet(`a about above after again against all am an and any are
		as at be because been before being below between both but by can cannot
		could did do does doing down during each few for from further had has
		have having he her here hers herself him himself his how i if in into
		is it its itself just me more most my myself no nor not now of off on
		once only or other our ours ourselves out over own same she should so
		some such than that the their theirs them themselves then there these
		they this those through to too under until up very was we were what
		when where which while who whom why will with you your yours yourself
		yourselves`),
	"spanish": wordSet(`a al algo antes como con contra cual cuando de del
		desde donde durante e el ella ellas ellos en entre era es esa ese eso
		esta este esto fue ha hasta hay la las le les lo los mas mi muy nada ni
		no nos o otra otro para pero por porque que quien se ser si sin sobre
		son su sus tambien te tiene un una uno y ya yo`),
	"french": wordSet(`a au aux avec ce ces dans de des du elle en et eux il
		ils je la le les leur lui ma mais me meme mes moi mon ne nos notre nous
		on ou par pas pour qu que qui sa se ses son sur ta te tes toi ton tu un
		une vos votre vous`),
	"german": wordSet(`aber als am an auch auf aus bei bin bis das dass dem
		den der des die doch du durch ein eine einem einen einer es fur hat
		hatte ich ihr im in ist ja kann mein mit nach nicht noch nur oder sein
		sich sie sind so uber um und uns von vor war was wie wir wird zu zum
		zur`),
	"portuguese": wordSet(`a ao aos as com como da das de dela dele dels do
		dos e ela elas ele eles em entre era essa esse esta este eu foi ha isso
		isto ja la mais mas me mesmo meu minha muito na nao nas nem no nos nossa
		nosso o os ou para pela pelo por qual quando que quem se sem ser seu sua
		tambem te tem um uma voce`),
	"italian": wordSet(`a ad agli ai al alla alle allo anche che chi ci come
		con cui da dal dalla de dei del della delle dello di e ed era gli ha
		hanno il in io la le lei lo loro lui ma mi ne nei nel nella noi non o
		per piu quella quello questa questo se si sono su sua suo tra tu un una
		uno voi`),
}

// TokenSet normalises text for the given language and returns its distinct
// tokens. An unsupported language still tokenises, just without stop-word
// removal. Order is not meaningful; callers treat the result as a set.
func TokenSet(text string, language string) []string {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	stop := stopWords[language]
	seen := make(map[string]struct{}, len(words))
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if _, isStop := stop[word]; isStop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		tokens = append(tokens, word)
	}
	return tokens
}

// Supported reports whether a stop-word list exists for the language.
func Supported(language string) bool {
	_, ok := stopWords[language]
	return ok
}

func wordSet(words string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(words) {
		set[w] = struct{}{}
	}
	return set
}
