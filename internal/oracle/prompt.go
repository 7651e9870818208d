package oracle

import "strings"

// ComparePrompt asks whether two Pix receipts share the same master layout.
// The reference document is always sent first.
func ComparePrompt() string {
	return strings.Join([]string{
		"Você é um perito em documentos bancários e compara layouts de comprovantes Pix.",
		"Receberá dois documentos, nesta ordem: A é o modelo de referência, B é o comprovante a classificar.",
		"Qualquer um deles pode ter tarjas pretas sobre os valores. Trate as tarjas como ruído: o layout continua existindo por baixo delas.",
		"",
		"Como comparar:",
		"1. Identifique a instituição de cada documento. Instituições diferentes significam is_match=false.",
		"2. Liste os RÓTULOS dos campos de A, de cima para baixo (ex.: \"Destinatário\", \"Valor\", \"Data\", \"ID da transação\").",
		"3. Faça o mesmo com B.",
		"4. As duas listas precisam ter o mesmo conteúdo e a mesma ordem. Ignore os VALORES.",
		"5. Considere também a identidade visual fixa: logotipo, cor do cabeçalho, alinhamento dos campos.",
		"Pequenas falhas de leitura ou um rodapé cortado são aceitáveis. Campos alinhados de forma diferente indicam outro layout.",
		"",
		"Escala de confiança:",
		"1.0 mesmo banco, mesmos rótulos na mesma ordem visual.",
		"0.8 mesma estrutura, mas um dos documentos tem qualidade pior ou corte leve.",
		"0.2 mesmo banco, layout diferente (ex.: comprovante web contra comprovante do app).",
		"0.0 bancos diferentes ou documentos sem relação.",
		"",
		"Responda somente com um objeto JSON, sem markdown, no formato:",
		`{"is_match": true|false, "confidence": 0.0-1.0, "reason": "rótulos encontrados em A e em B e a conclusão"}`,
	}, "\n")
}

// AuditPrompt asks for a skeptical data-leak review of a masked receipt.
func AuditPrompt() string {
	return strings.Join([]string{
		"Você é um auditor de prevenção de vazamento de dados (DLP) e deve bloquear qualquer PII ainda visível.",
		"O documento é um comprovante Pix em que os VALORES dos campos deveriam estar cobertos por tarjas pretas sólidas.",
		"",
		"É dado sensível, se estiver legível:",
		"- nome de pessoa física (nomes de bancos e instituições de pagamento não contam);",
		"- CPF ou CNPJ, inteiro ou parcial, exceto o CNPJ da própria instituição;",
		"- agência e conta;",
		"- chave Pix (e-mail, telefone, CPF ou chave aleatória).",
		"",
		"Regras:",
		"- Um rótulo impresso como \"CPF\" ou \"Nome\" não é vazamento. Só o valor legível é.",
		"- Valor coberto por tarja preta sólida está seguro.",
		"- Tarja translúcida que deixa ler o valor é vazamento.",
		"- Tarja que cobre só parte do nome ou do número é vazamento.",
		"- Podem ficar visíveis: valores em R$, datas e horários, IDs de transação, nomes de bancos e textos de rodapé.",
		"",
		"Analise campo a campo. Se encontrar vazamento, coloque o rótulo do campo em leaked_fields.",
		"Responda somente com um objeto JSON:",
		`{"has_sensitive_data": true|false, "reason": "o que foi encontrado", "leaked_fields": ["..."]}`,
	}, "\n")
}

// ClassifyPrompt asks which institution issued the receipt.
func ClassifyPrompt() string {
	return strings.Join([]string{
		"Você recebe um comprovante de pagamento brasileiro (Pix, TED ou boleto).",
		"Identifique a instituição financeira que EMITIU o comprovante, isto é, o app ou banco de onde o pagamento saiu.",
		"Use o logotipo, o cabeçalho e o rodapé. Não confunda com o banco do destinatário.",
		"Devolva o nome curto e usual da instituição (ex.: \"Nubank\", \"Itau\", \"Banco do Brasil\").",
		"Se não for possível identificar, devolva uma string vazia.",
		`Responda somente com JSON: {"classify": "<instituição>"}`,
	}, "\n")
}
