package textutil

import "strings"

var stopWordLists = map[string]string{
	"en": `a about above after again against all also am an and any are as at be
		because been before being below between both but by can could did do does
		doing down during each few for from further get got had has have having he
		her here hers herself him himself his how i if in into is it its itself
		just know like me more most my myself no nor not now of off on once only
		or other our ours ourselves out over own really right same she should so
		some such than that that's the their theirs them themselves then there
		these they this those through to too under until up us very was we well
		were what when where which while who whom why will with would yeah yes
		you your yours yourself yourselves going gonna want think thing things
		don't it's i'm you're we're they're there's can't didn't doesn't isn't`,
	"es": `a al algo como con de del el ella ellos en es esta este esto hay la las
		le lo los me mi muy más no nos o para pero por porque que se sin su sus
		también te tu un una uno y ya yo`,
	"fr": `a au aux avec ce ces c'est dans de des du elle en est et il ils je la le
		les leur lui ma mais me mes moi mon ne nous on ou par pas pour qu que qui
		sa se ses son sur ta te tes toi ton tu un une vous y`,
	"de": `aber als am an auch auf aus bei bin bis das dass dem den der des die
		doch du ein eine einem einen einer er es für hat ich ihr im in ist ja kein
		mit nicht noch nur oder schon sehr sie sind so und uns von war was wir wie
		zu zum zur`,
}

// StopWords returns the stop word set for an ISO 639-1 code. Unknown codes
// get the English list. Entries are case-folded like Tokenize output.
func StopWords(iso2 string) map[string]struct{} {
	list, ok := stopWordLists[strings.ToLower(strings.TrimSpace(iso2))]
	if !ok {
		list = stopWordLists["en"]
	}
	fields := strings.Fields(list)
	set := make(map[string]struct{}, len(fields))
	for _, word := range Tokenize(strings.Join(fields, " "), 1) {
		set[word] = struct{}{}
	}
	return set
}
