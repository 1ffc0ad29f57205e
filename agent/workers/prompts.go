package workers

// System prompts for each worker.
const (
	webResearcherSystem = `You are a web research specialist. Formulate effective search queries, ` +
		`prefer credible sources, cross-reference findings and report them in a structured way. ` +
		`State your confidence honestly.`

	documentAnalyzerSystem = `You are a document analysis specialist. Identify themes, key points, ` +
		`entities and sentiment, and back every insight with evidence from the text.`

	summaryGeneratorSystem = `You are a summarization specialist. Produce accurate, well-structured ` +
		`summaries at the requested length without adding information absent from the source.`

	qaAgentSystem = `You are a question answering specialist. Answer directly and completely, ` +
		`distinguish facts drawn from the given context from general knowledge, and call out uncertainty.`

	citationManagerSystem = `You are a citation specialist. Format references exactly according to ` +
		`the requested citation style and flag any missing bibliographic elements.`
)

var summaryLengths = map[string]string{
	"brief":    "2-3 sentences, <100 words",
	"medium":   "1-2 paragraphs, 100-300 words",
	"detailed": "3-5 paragraphs, 300-600 words",
}

const webResearchTemplate = `Conduct web research on the following query:

Query: %s

Additional context: %s

Steps to follow:
1. Formulate effective search queries
2. Identify credible sources
3. Extract relevant information
4. Validate and cross-reference findings
5. Organize findings coherently

Provide your research results in JSON format:
{
    "query": "original query",
    "search_queries_used": ["query1", "query2"],
    "sources": [{"url": "...", "title": "...", "credibility": "high/medium/low", "key_findings": ["..."]}],
    "summary": "overall summary of findings",
    "confidence": "high/medium/low",
    "recommendations": ["recommendation1"]
}`

const analyzeTemplate = `Analyze this document:

Analysis Type: %s
Task: %s
Context: %s

Document Content:
%s

Provide analysis in JSON format:
{
    "document_type": "type of document",
    "main_themes": ["theme1", "theme2"],
    "key_points": [{"point": "...", "importance": "high/medium/low", "evidence": "..."}],
    "entities": {"people": [], "organizations": [], "locations": [], "concepts": []},
    "sentiment": {"overall": "positive/neutral/negative", "confidence": 0-100},
    "insights": ["insight1"],
    "summary": "concise summary",
    "confidence": "high/medium/low"
}`

const summaryTemplate = `Generate a %s summary of this content:

Length: %s (%s)
Task: %s
Context: %s

Content to summarize:
%s

Provide summary in JSON format:
{
    "title": "appropriate title for the summary",
    "summary_type": "%s",
    "summary": "the actual summary text",
    "key_points": ["point1", "point2", "point3"],
    "tags": ["tag1", "tag2"],
    "confidence": "high/medium/low"
}`

const qaTemplate = `Answer this question comprehensively:

Question: %s
%s%s
Provide your answer in JSON format:
{
    "answer": "comprehensive answer",
    "confidence": "high/medium/low",
    "sources": [{"type": "context/knowledge/inference", "content": "specific source or reasoning"}],
    "key_points": ["point1", "point2"],
    "follow_up_questions": ["question1"],
    "caveats": ["any limitations or uncertainties"]
}`

const citationTemplate = `Create a %s citation for this source:

Task: %s

Source Information:
%s

Provide citation in JSON format:
{
    "citation_style": "%s",
    "full_citation": "complete formatted citation",
    "in_text_citation": "in-text citation format",
    "bibtex": "BibTeX entry if applicable",
    "source_type": "journal/book/website/etc",
    "citation_key": "unique identifier for this source"
}`
