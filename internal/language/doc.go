// Package language maps the free-form language values found in drafts
// ("en", "zh-Hans", "jpn", "French") to canonical BCP 47 tags and to the
// English names used in model prompts.
package language
