package sqlinline

const QInsertGeneratedImage = `--sql 724d7257-e6c6-44e6-b4ff-c44bf7172660
insert into generated_images(
  id,
  event_id,
  prompt_id,
  original_image_url,
  generated_image_url,
  qr_code_url,
  model_used,
  tokens_used,
  estimated_cost,
  processing_time_ms,
  created_at
) values (
  gen_random_uuid(),
  $1::uuid,
  nullif($2::text, '')::uuid,
  $3::text,
  $4::text,
  $5::text,
  $6::text,
  $7::int,
  $8::numeric,
  $9::int,
  now()
);
`

const QListImageCosts = `--sql e3294c13-93e6-4313-97eb-9729745ae720
select coalesce(estimated_cost, 0)::float8, created_at
from generated_images
where ($1::text = '' or event_id::text = $1::text);
`

const QRecentGeneratedImages = `--sql 907b4fe7-4968-46a8-862c-d17d59bb1724
select
  id::text,
  event_id::text,
  prompt_id::text,
  original_image_url,
  generated_image_url,
  qr_code_url,
  model_used,
  tokens_used,
  estimated_cost::float8,
  processing_time_ms,
  created_at
from generated_images
order by created_at desc
limit $1::int;
`
