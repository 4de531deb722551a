// Package messages is the only place user-facing text is produced. Errors are
// mapped by kind to short localized sentences; collaborator error bodies never
// pass through.
package messages

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"

	"github.com/vbonduro/foodiepass/internal/apperr"
	"github.com/vbonduro/foodiepass/internal/scan"
	"github.com/vbonduro/foodiepass/internal/upload"
)

// Message keys.
const (
	KeyUnsupportedType = "error.unsupported_type"
	KeyTooLarge        = "error.too_large"
	KeyInvalidRequest  = "error.invalid_request"
	KeyDecode          = "error.decode"
	KeyNetwork         = "error.network"
	KeyServer          = "error.server"
	KeyBadRequest      = "error.bad_request"
	KeyProtocol        = "error.protocol"
	KeyTimeout         = "error.timeout"
	KeySurveySubmit    = "error.survey_submit"
	KeyUnknown         = "error.unknown"
	KeyErrorTitle      = "error.title"

	KeyTitle            = "app.title"
	KeyTagline          = "app.tagline"
	KeyUploadPrompt     = "scan.upload_prompt"
	KeyUploadHint       = "scan.upload_hint"
	KeyLanguageLabel    = "scan.language_label"
	KeyLanguagePick     = "scan.language_placeholder"
	KeyCurrencyLabel    = "scan.currency_label"
	KeyCurrencyPick     = "scan.currency_placeholder"
	KeyScanButton       = "scan.submit"
	KeySubmitting       = "scan.submitting"
	KeyAnalyzing        = "scan.analyzing"
	KeyAnalyzingHint    = "scan.analyzing_hint"
	KeyRetry            = "scan.retry"
	KeyRescan           = "result.rescan"
	KeyResultDone       = "result.done"
	KeyItemsFound       = "result.items_found"
	KeyProcessingTime   = "result.processing_time"
	KeyNoItems          = "result.no_items"
	KeyNoResult         = "result.none"
	KeyHome             = "result.home"
	KeySurveyTitle      = "survey.title"
	KeySurveyQuestion   = "survey.question"
	KeySurveyYes        = "survey.yes"
	KeySurveyNo         = "survey.no"
	KeySurveyThanks     = "survey.thanks"
	KeySurveyPromptHint = "survey.prompt_hint"
	KeyNoAnswers        = "survey.no_answers"
)

var supported = []language.Tag{language.Korean, language.English}

var matcher = language.NewMatcher(supported)

var cat = mustBuild()

type entry struct {
	key    string
	ko, en string
}

var entries = []entry{
	{KeyUnsupportedType, "JPG, PNG, HEIC 형식만 지원합니다.", "Only JPG, PNG and HEIC images are supported."},
	{KeyTooLarge, "이미지 크기는 10MB 이하여야 합니다.", "Images must be 10MB or smaller."},
	{KeyInvalidRequest, "사진과 번역할 언어, 화폐를 모두 선택하세요.", "Choose a photo, a language and a currency."},
	{KeyDecode, "이미지를 읽을 수 없습니다. 다른 사진을 선택하세요.", "The image could not be read. Please choose another photo."},
	{KeyNetwork, "서버에 연결할 수 없습니다. 네트워크를 확인하고 다시 시도하세요.", "Could not reach the server. Check your connection and try again."},
	{KeyServer, "메뉴를 분석하지 못했습니다. 다른 사진으로 다시 시도하세요.", "The menu could not be analyzed. Please try again with another photo."},
	{KeyBadRequest, "서버가 요청을 거부했습니다. 다른 사진이나 설정으로 다시 시도하세요.", "The server rejected the request. Try another photo or different settings."},
	{KeyProtocol, "서버 응답을 이해할 수 없습니다. 잠시 후 다시 시도하세요.", "The server sent a response we could not understand. Please try again later."},
	{KeyTimeout, "분석 시간이 너무 오래 걸립니다. 다시 시도하세요.", "The analysis took too long. Please try again."},
	{KeySurveySubmit, "응답을 저장하지 못했습니다. 다시 선택해 주세요.", "Your answer could not be saved. Please choose again."},
	{KeyUnknown, "알 수 없는 오류가 발생했습니다", "An unknown error occurred"},
	{KeyErrorTitle, "오류가 발생했습니다", "Something went wrong"},

	{KeyTitle, "FoodiePass", "FoodiePass"},
	{KeyTagline, "메뉴판을 찍으면 자동으로 번역하고 사진까지 보여드립니다", "Snap a menu and we translate it and show you the dishes"},
	{KeyUploadPrompt, "메뉴판 사진을 업로드하세요", "Upload a photo of the menu"},
	{KeyUploadHint, "JPG, PNG, HEIC 형식 지원 • 최대 10MB", "JPG, PNG, HEIC supported • up to 10MB"},
	{KeyLanguageLabel, "번역할 언어", "Translate to"},
	{KeyLanguagePick, "언어를 선택하세요", "Choose a language"},
	{KeyCurrencyLabel, "환율 변환", "Convert prices to"},
	{KeyCurrencyPick, "화폐를 선택하세요", "Choose a currency"},
	{KeyScanButton, "메뉴 스캔하기", "Scan menu"},
	{KeySubmitting, "처리 중...", "Processing..."},
	{KeyAnalyzing, "메뉴를 분석하는 중...", "Analyzing the menu..."},
	{KeyAnalyzingHint, "보통 5초 정도 걸립니다.", "This usually takes about 5 seconds."},
	{KeyRetry, "다시 시도", "Try again"},
	{KeyRescan, "다시 스캔하기", "Scan again"},
	{KeyResultDone, "메뉴 분석 완료", "Menu analyzed"},
	{KeyNoItems, "메뉴 항목을 찾을 수 없습니다", "No menu items found"},
	{KeyNoResult, "결과를 찾을 수 없습니다", "No result to show"},
	{KeyHome, "홈으로 돌아가기", "Back to home"},
	{KeySurveyTitle, "확신도 설문", "Confidence survey"},
	{KeySurveyQuestion, "이 정보만으로 확신을 갖고 주문할 수 있습니까?", "Could you order confidently with only this information?"},
	{KeySurveyYes, "예", "Yes"},
	{KeySurveyNo, "아니오", "No"},
	{KeySurveyThanks, "감사합니다!", "Thank you!"},
	{KeySurveyPromptHint, "[y/n]", "[y/n]"},
	{KeyNoAnswers, "저장된 설문 응답이 없습니다", "No survey answers recorded"},

	{KeyItemsFound, "%d개의 메뉴를 찾았습니다", "Found %d menu items"},
	{KeyProcessingTime, "%.1f초", "%.1fs"},
}

func mustBuild() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.Korean))
	for _, e := range entries {
		if err := b.SetString(language.Korean, e.key, e.ko); err != nil {
			panic(fmt.Sprintf("set %s (ko): %v", e.key, err))
		}
		if err := b.SetString(language.English, e.key, e.en); err != nil {
			panic(fmt.Sprintf("set %s (en): %v", e.key, err))
		}
	}
	return b
}

// Tag resolves a locale string such as "ko", "en-US" or an Accept-Language
// header to a supported tag. Anything unrecognised is Korean.
func Tag(locale string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(locale)
	if err != nil || len(tags) == 0 {
		return language.Korean
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return language.Korean
	}
	return supported[idx]
}

// Printer returns a printer for tag backed by the catalog.
func Printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(cat))
}

// Text returns the localized text for key.
func Text(tag language.Tag, key string, args ...any) string {
	return Printer(tag).Sprintf(key, args...)
}

// Message is a sanitized, user-facing error.
type Message struct {
	Key       string
	Text      string
	Retryable bool
}

// For maps err to the message the user sees. Only timeouts and network
// failures can be retried with the same file.
func For(err error, tag language.Tag) Message {
	key := keyFor(err)
	kind := apperr.KindOf(err)
	return Message{
		Key:       key,
		Text:      Text(tag, key),
		Retryable: kind == apperr.KindTimeout || kind == apperr.KindNetwork,
	}
}

func keyFor(err error) string {
	var rej *upload.Rejection
	if errors.As(err, &rej) {
		if rej.Reason == upload.TooLarge {
			return KeyTooLarge
		}
		return KeyUnsupportedType
	}
	if errors.Is(err, scan.ErrInFlight) {
		return KeySubmitting
	}

	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return KeyInvalidRequest
	case apperr.KindDecode:
		return KeyDecode
	case apperr.KindNetwork:
		return KeyNetwork
	case apperr.KindServer:
		// 4xx means the request itself was refused; another try with the
		// same inputs will not help.
		if status := apperr.StatusOf(err); status >= 400 && status < 500 {
			return KeyBadRequest
		}
		return KeyServer
	case apperr.KindProtocol:
		return KeyProtocol
	case apperr.KindTimeout:
		return KeyTimeout
	case apperr.KindSurveySubmit:
		return KeySurveySubmit
	default:
		return KeyUnknown
	}
}
