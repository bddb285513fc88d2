package scraper

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nursmen/neuralhire/internal/ingestion"
)

const listingFixture = `<html><body>
<div class="f-test-search-result-item _x">
  <a href="/vakansii/python-developer-1.html">Python Developer</a>
  <span class="kk-+S _1wD2J _3ixqx _3uDFj _2KByL">от 100 000 до 140 000 ₽</span>
  <span class="wDNBJ _3ixqx _3uDFj _2KByL">Москва</span>
  <span class="wDNBJ _3ixqx _3uDFj _2KByL _2wD_q">Опыт: Python, Django и PostgreSQL</span>
  <span class="_94I1l f-test-text-vacancy-item-company-name _2xwe3">Яндекс4.5</span>
  <div class="_1Zv0C EI3kW _1B3_w">Удаленная работаОпыт не нужен</div>
</div>
<div class="f-test-search-result-item">
  <a href="https://other.example/job/2">Курьер</a>
  <span class="kk-+S _1wD2J _3ixqx _3uDFj _2KByL">По договорённости</span>
</div>
<div class="f-test-search-result-item"><span>no link</span></div>
<div class="unrelated"><a href="/x">Not a card</a></div>
</body></html>`

func mustURL(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	require.NoError(t, err)
	return u
}

func TestParseListing(t *testing.T) {
	rows, err := ParseListing(strings.NewReader(listingFixture), mustURL(t, "https://russia.superjob.ru/vacancy/search/"), DefaultSelectors)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, "Python Developer", first[ingestion.ColTitle])
	assert.Equal(t, "https://russia.superjob.ru/vakansii/python-developer-1.html", first[ingestion.ColLink])
	assert.Equal(t, "120000", first[ingestion.ColMoney])
	assert.Equal(t, "Москва", first[ingestion.ColCity])
	assert.Equal(t, "PYTHON DJANGO POSTGRESQL", first[ingestion.ColKnowledge])
	assert.Equal(t, "Яндекс4.5", first[ingestion.ColCompany])
	assert.Equal(t, "['Удаленная работа', 'Опыт не нужен']", first[ingestion.ColAddition])

	second := rows[1]
	assert.Equal(t, "https://other.example/job/2", second[ingestion.ColLink])
	assert.Equal(t, "По договорённости", second[ingestion.ColMoney])
}

func TestParseMoney(t *testing.T) {
	assert.Equal(t, "50000", parseMoney("50 000 ₽/месяц"))
	assert.Equal(t, "", parseMoney("Не указана"))
	assert.Equal(t, "70000", parseMoney("70000 ₽, тел. 89991234567"))
}

func TestSplitCamel(t *testing.T) {
	assert.Equal(t, []string{"Удаленная работа", "Гибкий график"}, splitCamel("Удаленная работаГибкий график"))
	assert.Nil(t, splitCamel(""))
}

type fakeFetcher struct {
	pages map[string]string
	urls  []string
}

func (f *fakeFetcher) Fetch(_ context.Context, pageURL string) (string, error) {
	f.urls = append(f.urls, pageURL)
	body, ok := f.pages[pageURL]
	if !ok {
		return "", errors.New("404")
	}
	return body, nil
}

func TestScraper_Run(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://russia.superjob.ru/vacancy/search/?page=1": listingFixture,
	}}
	s, err := New(fetcher, Config{BaseURL: "https://russia.superjob.ru/vacancy/search/", Pages: 2}, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	stats, err := s.Run(context.Background(), ingestion.NewWriter(&buf))
	require.NoError(t, err)

	assert.Equal(t, Stats{Pages: 2, FailedPages: 1, Rows: 2}, stats)
	assert.Equal(t, "https://russia.superjob.ru/vacancy/search/?page=2", fetcher.urls[1])

	rows, err := ingestion.ReadCSV(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(120000), *rows[0].Job().Salary)
	assert.Equal(t, "Яндекс", rows[0].Job().Company)
}

func TestNew_InvalidBaseURL(t *testing.T) {
	_, err := New(&fakeFetcher{}, Config{BaseURL: "not a url"}, nil)
	assert.Error(t, err)
}
