package biz

import (
	"fmt"
	"strings"

	"github.com/kart-io/moktashif/internal/model"
	"github.com/kart-io/moktashif/internal/pkg/textutil"
)

// Refusal 是所有分支在非网络安全问题上使用的固定拒答句。
const Refusal = "I can only help with cybersecurity topics. Please ask something related to web security, hacking, threats, or protection."

// NoContentFound 是文档没有任何非空块时的固定摘要结果。
const NoContentFound = "[ERROR] No content found in the document."

// Persona 是记忆分支的基础系统提示词。
const Persona = "You are Moktashif, a smart and friendly cybersecurity assistant.\n" +
	"You have access to the user's previous conversations and replies. " +
	"When the user asks a question, always check if similar questions or relevant context exist in their past conversations (shown below). " +
	"If the user is replying to a specific message, use the content of that message as immediate context for their new question. " +
	"Always prioritize the most relevant and recent information, but do not repeat answers verbatim unless asked.\n" +
	"You are strictly limited to answering only cybersecurity-related questions.\n" +
	"If a user asks anything not related to cybersecurity, including famous people, sports, general trivia, or personal questions, you must politely refuse.\n" +
	"Say: '" + Refusal + "'\n" +
	"Do not provide answers outside the domain, even if you know them. Never break character.\n" +
	"Use a warm, human tone with short, clear answers. You can be casual or slightly witty when appropriate, especially in greetings or small talk.\n" +
	"Introduce yourself as 'Moktashif' only when it makes sense, such as during first-time greetings, re-engagement after a pause, or if the user asks who you are.\n" +
	"Don't overuse your name. Vary your language like a real human would.\n" +
	"Avoid technical jargon unless the user clearly understands it. Always favor helpful explanations over buzzwords.\n" +
	"Do not break character or explain that you're an AI. Stay in role as Moktashif.\n" +
	"Do not hallucinate or provide false information regarding the security field like if the user have asked you about new cve or new tools just tell them that you don't know.\n" +
	"If the user asks about something recent, breaking, or requests the latest information, you may use live web search results if available.\n" +
	"If you do not have enough information to answer, you may request to use the web search feature.\n" +
	"You are a cybersecurity expert. Provide accurate information about cybersecurity topics " +
	"based on your training data. If the user is asking about something that would require " +
	"real-time or recent information that might not be in your knowledge base, let them know " +
	"they should enable web search for the most up-to-date information."

// WebSearchPersona 是联网搜索答复使用的系统提示词。
const WebSearchPersona = "You are Moktashif, a cybersecurity assistant. Answer the user's question using the web search results provided. " +
	"Cite the relevant links. If the question is not related to cybersecurity, respond with exactly: '" + Refusal + "'"

const factClassifierPrompt = "You analyze text to determine if it contains personal information worth remembering for a security context.\n" +
	"Examples: system configurations, security tools used, industries, work environments, software versions.\n" +
	"If it DOES contain important personal context, respond with 'YES: <the factual information>'.\n" +
	"If it does NOT contain important personal context, respond with 'NO'.\n"

const documentPreamble = "You are provided with the full text of a cybersecurity document below. " +
	"Never say anything about missing documents or lack of context. Always assume the document is present if you see text below. "

const refusalInstruction = "If the content is not related to cybersecurity, respond with: '" + Refusal + "'"

func summaryPrompt(content string) string {
	return documentPreamble +
		"Summarize the following document, focusing on all cybersecurity-related information, findings, or insights. " +
		refusalInstruction + "\n\n" + content
}

func chunkSummaryPrompt(part int, chunk string) string {
	return fmt.Sprintf("This is part %d of a document. ", part) + documentPreamble +
		"Summarize the key cybersecurity-related information, findings, or insights in this section. " +
		refusalInstruction + "\n\n" + chunk
}

func summaryQuestionPrompt(summary, question string) string {
	return documentPreamble +
		"Based on the following document summary, answer the user's question:\n" + summary +
		"\n\nQuestion: " + question + "\n" + refusalInstruction
}

func chunkQuestionPrompt(chunk, question string) string {
	return "Based on the following document section, answer the question:\n" + chunk +
		"\n\nQuestion: " + question + "\n" + refusalInstruction
}

func combineAnswersPrompt(answers []string) string {
	return "Combine and summarize these answers, focusing only on cybersecurity-related content. " +
		"If none of the content is cybersecurity-related, respond with: '" + Refusal + "'\n" +
		strings.Join(answers, "\n\n")
}

// replyBlock 引用被回复的消息。
func replyBlock(content string) string {
	return "\nThe user is replying to this previous message:\n---\n" + content + "\n---\n"
}

// factMemoryPrompt 渲染事实类记忆。
func factMemoryPrompt(b model.MemoryBuckets) string {
	var sb strings.Builder
	if len(b.Current) > 0 {
		sb.WriteString("\nImportant context from current conversation:")
		for _, m := range b.Current {
			sb.WriteString("\n- " + m.Text)
		}
	}
	if len(b.Other) > 0 {
		sb.WriteString("\n\nIMPORTANT CROSS-CONVERSATION CONTEXT:")
		for _, m := range b.Other {
			fmt.Fprintf(&sb, "\n- From '%s': %s", m.ConversationTitle, m.Text)
		}
	}
	return sb.String()
}

// turnMemoryPrompt 渲染普通对话记忆。
func turnMemoryPrompt(b model.MemoryBuckets) string {
	var sb strings.Builder
	if len(b.Current) > 0 {
		sb.WriteString("\nCurrent conversation context (most relevant):")
		for _, m := range b.Current {
			fmt.Fprintf(&sb, "\n- %s: %s", m.Role, m.Text)
		}
	}
	if len(b.Other) > 0 {
		sb.WriteString("\nRelevant information from other conversations:")
		for _, m := range b.Other {
			fmt.Fprintf(&sb, "\n- In [%s]: %s: %s", m.ConversationID, m.Role, m.Text)
		}
	}
	return sb.String()
}

func documentExcerptPrompt(doc string, limit int) string {
	return "\n\nThe user has uploaded a document. Use the following as additional context when answering their queries: " +
		"\n---\n" + textutil.Truncate(doc, limit) + "\n---\n"
}

// PromptParts 是记忆分支系统提示词的各组成部分，按固定优先级拼接。
type PromptParts struct {
	CapturedFact string
	Facts        model.MemoryBuckets
	Reply        *ReplyContext
	Turns        model.MemoryBuckets
	Document     string
	DocLimit     int
}

// BuildSystemPrompt 按固定顺序组装系统提示词：人设、刚捕获的事实、事实记忆、回复引用、普通记忆、文档摘录。
func BuildSystemPrompt(p PromptParts) string {
	var sb strings.Builder
	sb.WriteString(Persona)
	if p.CapturedFact != "" {
		sb.WriteString("\n\nThe user just shared an important personal fact: " + p.CapturedFact)
	}
	if s := factMemoryPrompt(p.Facts); s != "" {
		sb.WriteString("\n\n" + s)
	}
	if p.Reply != nil {
		sb.WriteString(p.Reply.Block)
	}
	if s := turnMemoryPrompt(p.Turns); s != "" {
		sb.WriteString("\n\n" + s)
	}
	if p.Document != "" {
		sb.WriteString(documentExcerptPrompt(p.Document, p.DocLimit))
	}
	return sb.String()
}
