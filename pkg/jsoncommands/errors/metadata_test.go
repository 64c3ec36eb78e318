package errors

import (
	"encoding/json"
	"testing"

	"github.com/matryer/is"
)

func ptr(s string) *string { return &s }

func TestParseMetadataWithKeyValuePairs(t *testing.T) {
	is := is.New(t)

	md := ParseMetadata(ptr("k1:v1,k2:v2"))

	is.Equal(md.Keys(), []string{"k1", "k2"})
	v, _ := md.Get("k1")
	is.Equal(v, "v1")
	v, _ = md.Get("k2")
	is.Equal(v, "v2")
}

func TestParseMetadataOfNilIsNil(t *testing.T) {
	is := is.New(t)
	is.True(ParseMetadata(nil) == nil)
}

func TestParseMetadataSplitsOnFirstColonOnly(t *testing.T) {
	is := is.New(t)

	md := ParseMetadata(ptr("a:b:c"))

	is.Equal(md.Len(), 1)
	v, _ := md.Get("a")
	is.Equal(v, "b:c")
}

func TestParseMetadataTrimsKeysButNotValues(t *testing.T) {
	is := is.New(t)

	md := ParseMetadata(ptr(" Entity : Bookstore.Book, Property: Name "))

	is.Equal(md.Keys(), []string{"Entity", "Property"})
	v, _ := md.Get("Entity")
	is.Equal(v, " Bookstore.Book")
	v, _ = md.Get("Property")
	is.Equal(v, " Name ")
}

func TestParseMetadataLetsLaterKeysOverwriteEarlier(t *testing.T) {
	is := is.New(t)

	md := ParseMetadata(ptr("a:1,b:2,a:3"))

	is.Equal(md.Keys(), []string{"a", "b"})
	v, _ := md.Get("a")
	is.Equal(v, "3")
}

func TestParseMetadataFallsBackToSystemMessage(t *testing.T) {
	is := is.New(t)

	for _, msg := range []string{"not-a-pair", "", ",", ":", "a:1,b", "a:1, :2", "Invalid JSON format. At line 1, position 2."} {
		md := ParseMetadata(ptr(msg))

		is.Equal(md.Keys(), []string{SystemMessageKey}) // should fall back for malformed message
		v, _ := md.Get(SystemMessageKey)
		is.Equal(v, msg) // fallback should contain the message verbatim
	}
}

func TestMetadataMarshalsKeysInOrder(t *testing.T) {
	is := is.New(t)

	md := ParseMetadata(ptr("z:1,a:2,m:3"))
	b, err := json.Marshal(md)

	is.NoErr(err)
	is.Equal(string(b), `{"z":"1","a":"2","m":"3"}`)

	md2 := &Metadata{}
	is.NoErr(json.Unmarshal(b, md2))
	is.Equal(md2.Keys(), []string{"z", "a", "m"})
}

func TestNewErrorResponseOmitsMetadataWithoutUserMessage(t *testing.T) {
	is := is.New(t)

	b, err := json.Marshal(NewErrorResponse(nil, ptr("Internal server error occurred."), false))
	is.NoErr(err)
	is.Equal(string(b), `{"Error":{"Message":"Internal server error occurred."}}`)

	b, err = json.Marshal(NewErrorResponse(ptr("Invalid value."), ptr("Entity:Bookstore.Book,Property:Name"), false))
	is.NoErr(err)
	is.Equal(string(b), `{"Error":{"Message":"Invalid value.","Metadata":{"Entity":"Bookstore.Book","Property":"Name"}}}`)
}

func TestNewLegacyErrorResponse(t *testing.T) {
	is := is.New(t)

	b, err := json.Marshal(NewErrorResponse(ptr("test1"), nil, true))
	is.NoErr(err)
	is.Equal(string(b), `{"UserMessage":"test1","SystemMessage":null}`)
}
