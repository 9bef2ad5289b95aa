package evaluation

import "github.com/fairyhunter13/ai-interview-evaluator/internal/chain"

const systemRules = "You are a rigorous interview analysis engine. Return ONLY valid JSON. No prose, no markdown fences, no trailing commentary."

// Stage names. These keys also appear in Dossier.StageErrors.
const (
	StageIntent      = "intent"
	StageIdentify    = "identify"
	StageExtract     = "extract"
	StageScore       = "score"
	StageExplain     = "explain"
	StageCoach       = "coach"
	StageModelAnswer = "model_answer"
	StageBias        = "bias"
)

var stageIntent = chain.Stage{
	Name:        StageIntent,
	System:      systemRules,
	Temperature: 0.0,
	MaxTokens:   2000,
	Template: `Classify the candidate utterance below with respect to the interview question.

[Question]
{question}

[Utterance]
{answer}

Intents:
- ANSWER: a substantive attempt to answer the question
- IRRELEVANT: off-topic or evasive
- QUESTION: the candidate asks their own question back
- CLARIFICATION_REQUEST: the candidate asks what the question means
- CANNOT_ANSWER: the candidate declines or states they do not know

Output JSON:
{"intent": "ANSWER|IRRELEVANT|QUESTION|CLARIFICATION_REQUEST|CANNOT_ANSWER", "confidence": 0.0}`,
}

var stageIdentify = chain.Stage{
	Name:        StageIdentify,
	System:      systemRules,
	Temperature: 0.1,
	MaxTokens:   800,
	Template: `Identify the structural framework that best fits the candidate answer, and rate the auxiliary signals.

[Question type]
{question_type}

[Answer]
{answer}

Frameworks: STAR, COMPETENCY, CASE, SYSTEMDESIGN.
Signals (0-10 each): c = overcoming a challenge, l = learning/growth, m = quantified metrics.

Output JSON:
{"framework": "STAR|COMPETENCY|CASE|SYSTEMDESIGN", "signals": {"c": 0, "l": 0, "m": 0}}`,
}

var stageExtract = chain.Stage{
	Name:        StageExtract,
	System:      systemRules,
	Temperature: 0.2,
	MaxTokens:   1600,
	Template: `Extract the framework components from the candidate answer. Quote or closely paraphrase the answer; write "" for absent components. Do not invent content.

[Framework]
{framework}

[Components]
{component_keys}

[Answer]
{answer}

Output JSON: an object whose keys are exactly the listed components and whose values are the extracted text.`,
}

var stageScore = chain.Stage{
	Name:        StageScore,
	System:      systemRules,
	Temperature: 0.2,
	MaxTokens:   1500,
	Template: `Score the candidate answer against the framework components and auxiliary signals.

[Company] {company}
[Role] {role}
[Question]
{question}

[Expected points]
{expected_points}

[Grounding context]
{grounding}

[Framework] {framework}
[Extracted components]
{extracted}

[Answer]
{answer}

Rules:
- scores_main: one integer 0-20 per component key listed here: {component_keys}
- scores_ext: one integer 0-10 per signal listed here: {extension_keys}
- Score strictly; reserve 16+ for answers with concrete evidence.

Output JSON:
{"scores_main": {}, "scores_ext": {}, "scoring_reason": "..."}`,
}

var stageExplain = chain.Stage{
	Name:        StageExplain,
	System:      systemRules,
	Temperature: 0.2,
	MaxTokens:   2000,
	Template: `Explain each component score against the rubric. One entry per component.

[Rubric]
{rubric}

[Scores]
{scores}

[Answer]
{answer}

Output JSON:
{"calibration": [{"key": "...", "score": 0, "rationale": "..."}]}`,
}

var stageCoach = chain.Stage{
	Name:        StageCoach,
	System:      systemRules,
	Temperature: 0.2,
	MaxTokens:   1400,
	Template: `Coach the candidate on this answer. Every strength and improvement MUST contain a direct quote from the answer as evidence. Provide 3-5 of each.

[Question]
{question}

[Answer]
{answer}

Output JSON:
{"strengths": ["..."], "improvements": ["..."], "feedback": "2-4 sentence synthesis"}`,
}

var stageModelAnswer = chain.Stage{
	Name:        StageModelAnswer,
	System:      systemRules,
	Temperature: 0.4,
	MaxTokens:   1400,
	Template: `Write a model answer for the question below: 400-800 characters, structured by the named framework, specific to the company and role. State why that framework fits.

[Company] {company}
[Role] {role}
[Question]
{question}

[Framework] {framework}

Output JSON:
{"model_answer": "...", "model_answer_framework": "STAR|COMPETENCY|CASE|SYSTEMDESIGN", "selection_reason": "..."}`,
}

var stageBias = chain.Stage{
	Name:        StageBias,
	System:      systemRules,
	Temperature: 0.0,
	MaxTokens:   1400,
	Template: `Audit the feedback, coaching and model answer text below for bias: protected attributes, stereotyping, charged or non-job-related language. If clean, return flagged=false with empty sanitized fields.

[Feedback]
{feedback}

[Strengths]
{strengths}

[Improvements]
{improvements}

[Model answer]
{model_answer}

Output JSON:
{"flagged": false, "issues": [{"span": "...", "category": "...", "reason": "...", "suggested_fix": "...", "severity": "low|medium|high"}], "sanitized_feedback": "...", "sanitized_strengths": ["..."], "sanitized_improvements": ["..."], "sanitized_model_answer": "..."}`,
}
