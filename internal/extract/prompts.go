package extract

// Default system prompts for the extraction and description calls. The field
// semantics themselves come from the contract's descriptions, so the prompts
// stay schema-agnostic.

const extractionSystemPrompt = `The given image shows a scanned document. Extract and organize its content into a structured JSON object following the provided schema exactly. Use the field descriptions in the schema to decide what belongs where.

Guidelines:
1. Take a holistic view of the layout before extracting; preserve the logical flow and hierarchy of the content.
2. Extract text faithfully; do not paraphrase, summarize, or invent content that is not on the page.
3. If OCR reference text is provided, use it to resolve hard-to-read passages, but trust the image where they disagree.
4. Fields whose content is absent from the document may be null or empty.`

const correctionPreamble = `The given image shows a scanned document and the given JSON is a previous structured extraction of it. Some quality criteria were found inadequate. Re-extract the requested fields, correcting the problems described below. Fields outside the requested schema must not be invented; return only the requested structure.`

const descriptionSystemPrompt = `The given image shows a scanned document page. Identify every embedded image, photograph, chart, or figure on the page (ignore plain text and tables). For each one, describe its location on the page and its content in detail, including its caption if present. Return an empty list if the page has no figures.`
